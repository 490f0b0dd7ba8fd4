package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_loopvault() {
    local cur prev words cword
    _init_completion || return

    local commands="init status sync export import conflicts resolve compact keyring help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        sync)
            _filedir -d
            ;;
        export)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--out --collections --ids" -- "$cur"))
            else
                _filedir
            fi
            ;;
        import)
            _filedir
            ;;
        resolve)
            if [[ $cword -eq 3 ]]; then
                COMPREPLY=($(compgen -W "local remote" -- "$cur"))
            fi
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save forget status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _loopvault loopvault
`

const zshCompletion = `#compdef loopvault

_loopvault() {
    local -a commands
    commands=(
        'init:Create the local vault'
        'status:Show vault status'
        'sync:Sync with a folder-based remote vault'
        'export:Export an encrypted bundle'
        'import:Import an encrypted bundle'
        'conflicts:List unresolved sync conflicts'
        'resolve:Resolve a sync conflict'
        'compact:Compact vault to reclaim disk space'
        'keyring:Manage passphrase in OS keyring'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'loopvault commands' commands
            ;;
        args)
            case "${words[2]}" in
                sync)
                    _arguments '*:sync folder:_directories'
                    ;;
                export)
                    _arguments \
                        '--out[Output bundle path]:file:_files' \
                        '--collections[Comma-separated collection names]' \
                        '--ids[Comma-separated entity ids]'
                    ;;
                import)
                    _arguments '*:bundle file:_files'
                    ;;
                resolve)
                    if (( CURRENT == 4 )); then
                        _values 'choice' local remote
                    fi
                    ;;
                keyring)
                    _values 'subcommand' save forget status
                    ;;
                help)
                    _describe -t commands 'loopvault commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_loopvault "$@"
`

const fishCompletion = `# loopvault fish completions

set -l commands init status sync export import conflicts resolve compact keyring help completion

complete -c loopvault -f

# Commands
complete -c loopvault -n "not __fish_seen_subcommand_from $commands" -a init -d 'Create the local vault'
complete -c loopvault -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show vault status'
complete -c loopvault -n "not __fish_seen_subcommand_from $commands" -a sync -d 'Sync with a folder-based remote'
complete -c loopvault -n "not __fish_seen_subcommand_from $commands" -a export -d 'Export an encrypted bundle'
complete -c loopvault -n "not __fish_seen_subcommand_from $commands" -a import -d 'Import an encrypted bundle'
complete -c loopvault -n "not __fish_seen_subcommand_from $commands" -a conflicts -d 'List unresolved conflicts'
complete -c loopvault -n "not __fish_seen_subcommand_from $commands" -a resolve -d 'Resolve a sync conflict'
complete -c loopvault -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact vault'
complete -c loopvault -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage passphrase in OS keyring'
complete -c loopvault -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c loopvault -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# sync folders
complete -c loopvault -n "__fish_seen_subcommand_from sync" -a "(__fish_complete_directories)"

# export flags
complete -c loopvault -n "__fish_seen_subcommand_from export" -l out -d 'Output bundle path' -F
complete -c loopvault -n "__fish_seen_subcommand_from export" -l collections -d 'Comma-separated collection names'
complete -c loopvault -n "__fish_seen_subcommand_from export" -l ids -d 'Comma-separated entity ids'

# import files
complete -c loopvault -n "__fish_seen_subcommand_from import" -F

# resolve choices
complete -c loopvault -n "__fish_seen_subcommand_from resolve" -a "local remote"

# keyring subcommands
complete -c loopvault -n "__fish_seen_subcommand_from keyring" -a "save forget status"

# help completions
complete -c loopvault -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c loopvault -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
