package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/groovekit/loopvault/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(ctx, os.Args[2:])
	case "status":
		runStatus(ctx, os.Args[2:])
	case "sync":
		runSync(ctx, os.Args[2:])
	case "export":
		runExport(ctx, os.Args[2:])
	case "import":
		runImport(ctx, os.Args[2:])
	case "conflicts":
		runConflicts(ctx, os.Args[2:])
	case "resolve":
		runResolve(ctx, os.Args[2:])
	case "compact":
		runCompact(ctx, os.Args[2:])
	case "keyring":
		runKeyring(ctx, os.Args[2:])
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runInit(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Init(ctx)
}

func runStatus(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Status(ctx)
}

func runSync(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	remotePath := ""
	if len(fs.Args()) > 0 {
		remotePath = fs.Args()[0]
	}
	cmd.Sync(ctx, remotePath)
}

func runExport(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "Output bundle path")
	collections := fs.String("collections", "", "Comma-separated collection names (default: all)")
	ids := fs.String("ids", "", "Comma-separated entity ids (default: all)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	outPath := *out
	if outPath == "" && len(fs.Args()) > 0 {
		outPath = fs.Args()[0]
	}
	if outPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: loopvault export [--collections a,b] [--ids x,y] <bundle-file>")
		os.Exit(1)
	}

	cmd.Export(ctx, outPath, splitList(*collections), splitList(*ids))
}

func runImport(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if len(fs.Args()) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: loopvault import <bundle-file>")
		os.Exit(1)
	}
	cmd.Import(ctx, fs.Args()[0])
}

func runConflicts(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("conflicts", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Conflicts(ctx)
}

func runResolve(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if len(fs.Args()) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: loopvault resolve <conflict-id> <local|remote>")
		os.Exit(1)
	}
	cmd.Resolve(ctx, fs.Args()[0], fs.Args()[1])
}

func runCompact(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Compact(ctx)
}

func runKeyring(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: loopvault keyring <save|forget|status>")
		os.Exit(1)
	}
	switch args[0] {
	case "save":
		cmd.KeyringSave(ctx)
	case "forget":
		cmd.KeyringForget()
	case "status":
		cmd.KeyringStatus()
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: loopvault completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printUsage() {
	fmt.Println("loopvault - Encrypted sync for your loop library")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  loopvault <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init        Create the local vault and set a passphrase")
	fmt.Println("  status      Show vault status")
	fmt.Println("  sync        Sync with a folder-based remote vault")
	fmt.Println("  export      Export an encrypted bundle")
	fmt.Println("  import      Import an encrypted bundle")
	fmt.Println("  conflicts   List unresolved sync conflicts")
	fmt.Println("  resolve     Resolve a sync conflict")
	fmt.Println("  compact     Compact vault to reclaim disk space")
	fmt.Println("  keyring     Manage passphrase in OS keyring")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  loopvault init                          # Create new vault")
	fmt.Println("  loopvault sync /mnt/share/vault         # Merge with a shared folder")
	fmt.Println("  loopvault export --out loops.lvb        # Export everything")
	fmt.Println("  loopvault import loops.lvb              # Import on another device")
	fmt.Println()
	fmt.Println("Use 'loopvault help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("loopvault init")
		fmt.Println()
		fmt.Println("Creates the local vault database and the device configuration.")
		fmt.Println("Prompts for a passphrase that protects exported bundles.")
		fmt.Println("The passphrase is not stored anywhere - you must remember it.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  loopvault init                   # Create new vault")
	case "status":
		fmt.Println("loopvault status")
		fmt.Println()
		fmt.Println("Shows vault status including:")
		fmt.Println("  - Entity counts per collection")
		fmt.Println("  - Blob count and total size")
		fmt.Println("  - Unresolved conflict count")
		fmt.Println()
		fmt.Println("Does not require a passphrase.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  loopvault status")
	case "sync":
		fmt.Println("loopvault sync [<folder>]")
		fmt.Println()
		fmt.Println("Merges the local vault with a folder-based remote vault.")
		fmt.Println("Without an argument, uses the configured remotePath.")
		fmt.Println("Requires the vault passphrase: everything written to the")
		fmt.Println("shared folder is encrypted under it.")
		fmt.Println("Concurrent edits within one second of each other are flagged as")
		fmt.Println("conflicts; the local value is kept until you resolve them.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  loopvault sync /mnt/share/vault  # Merge with a shared folder")
		fmt.Println("  loopvault sync                   # Use the configured folder")
	case "export":
		fmt.Println("loopvault export [--collections a,b] [--ids x,y] <bundle-file>")
		fmt.Println()
		fmt.Println("Exports an encrypted bundle of vault metadata and referenced audio")
		fmt.Println("blobs. The bundle can be moved to another device by any means and")
		fmt.Println("imported there with the same passphrase.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --out          Output bundle path (or pass it as an argument)")
		fmt.Println("  --collections  Export only the named collections")
		fmt.Println("  --ids          Export only the named entity ids")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  loopvault export loops.lvb")
		fmt.Println("  loopvault export --collections laneTemplates loops.lvb")
	case "import":
		fmt.Println("loopvault import <bundle-file>")
		fmt.Println()
		fmt.Println("Imports a bundle into the local vault. Entities already present")
		fmt.Println("(same id) are skipped; blobs are verified against their content")
		fmt.Println("hash before being stored.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  loopvault import loops.lvb")
	case "conflicts":
		fmt.Println("loopvault conflicts")
		fmt.Println()
		fmt.Println("Lists unresolved sync conflicts with a field-level summary of what")
		fmt.Println("differs between the two devices.")
		fmt.Println()
		fmt.Println("Does not require a passphrase.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  loopvault conflicts")
	case "resolve":
		fmt.Println("loopvault resolve <conflict-id> <local|remote>")
		fmt.Println()
		fmt.Println("Resolves a conflict by keeping one side whole. The conflict id may")
		fmt.Println("be a unique prefix. A resolution is final.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  loopvault resolve 3f2a remote    # Keep the other device's value")
		fmt.Println("  loopvault resolve 3f2a local     # Keep this device's value")
	case "compact":
		fmt.Println("loopvault compact")
		fmt.Println()
		fmt.Println("Compacts the vault database to reclaim unused disk space,")
		fmt.Println("typically after deleting audio loops.")
		fmt.Println()
		fmt.Println("Does not require a passphrase.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  loopvault compact")
	case "keyring":
		fmt.Println("loopvault keyring <save|forget|status>")
		fmt.Println()
		fmt.Println("Manages the vault passphrase in the OS keyring so export, import")
		fmt.Println("and sync do not prompt. 'save' verifies the passphrase first.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  loopvault keyring save")
		fmt.Println("  loopvault keyring status")
		fmt.Println("  loopvault keyring forget")
	case "completion":
		fmt.Println("loopvault completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(loopvault completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(loopvault completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  loopvault completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
