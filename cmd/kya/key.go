package main

import (
	"fmt"
	"io"

	"kya.dev/kya/keys"
	"kya.dev/kya/kya"
)

func cmdKey(e *env, args []string) int {
	if len(args) == 0 {
		printKeyUsage(e.errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(e, args[1:])
	case "derive":
		return cmdKeyDerive(e, args[1:])
	case "list":
		return cmdKeyList(e, args[1:])
	case "export":
		return cmdKeyExport(e, args[1:])
	case "help", "-h", "--help":
		printKeyUsage(e.out)
		return 0
	default:
		fmt.Fprintf(e.errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(e.errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: kya key <subcommand> ...")
	fmt.Fprintln(w, "subcommands:")
	fmt.Fprintln(w, "  init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  derive --from <name> --agent <agent> [--force]")
	fmt.Fprintln(w, "  list")
	fmt.Fprintln(w, "  export --name <name>[/<agent>]")
}

func cmdKeyInit(e *env, args []string) int {
	fs := newFlagSet(e, "key init")
	name := fs.String("name", "", "Key name (directory under the key store)")
	seedHex := fs.String("seed-hex", "", "Optional ed25519 seed as 64 hex chars (for reproducible demos)")
	force := fs.Bool("force", false, "Overwrite an existing key file")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if *name == "" {
		fmt.Fprintln(e.errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(*name); err != nil {
		fmt.Fprintf(e.errOut, "invalid --name: %v\n", err)
		return 2
	}

	var kp *kya.KeyPair
	if *seedHex != "" {
		seed, err := keys.ParseSeedHex(*seedHex)
		if err != nil {
			fmt.Fprintf(e.errOut, "invalid --seed-hex: %v\n", err)
			return 2
		}
		if kp, err = kya.KeyPairFromSeed(seed); err != nil {
			fmt.Fprintf(e.errOut, "derive key: %v\n", err)
			return 1
		}
	} else {
		var err error
		if kp, err = kya.GenerateKeys(nil); err != nil {
			fmt.Fprintf(e.errOut, "generate key: %v\n", err)
			return 1
		}
	}

	ks, err := e.keyStore()
	if err != nil {
		fmt.Fprintf(e.errOut, "keys: %v\n", err)
		return 1
	}
	path, err := ks.Init(*name, kp, *force)
	if err != nil {
		fmt.Fprintf(e.errOut, "write key: %v\n", err)
		return 1
	}
	e.logger.Debug("key stored", "name", *name, "path", path)
	fmt.Fprintf(e.out, "Created key: %s\n", kp.PublicKeyBase64())
	fmt.Fprintf(e.out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyDerive(e *env, args []string) int {
	fs := newFlagSet(e, "key derive")
	from := fs.String("from", "", "Name of the key to derive from")
	agent := fs.String("agent", "", "Agent name for the derived key")
	force := fs.Bool("force", false, "Overwrite an existing key file")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if *from == "" || *agent == "" {
		fmt.Fprintln(e.errOut, "usage: kya key derive --from <name> --agent <agent> [--force]")
		return 2
	}
	ks, err := e.keyStore()
	if err != nil {
		fmt.Fprintf(e.errOut, "keys: %v\n", err)
		return 1
	}
	kp, path, err := ks.Derive(*from, *agent, *force)
	if err != nil {
		fmt.Fprintf(e.errOut, "derive key: %v\n", err)
		return 1
	}
	fmt.Fprintf(e.out, "Derived key %s/%s: %s\n", *from, *agent, kp.PublicKeyBase64())
	fmt.Fprintf(e.out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyList(e *env, args []string) int {
	fs := newFlagSet(e, "key list")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	ks, err := e.keyStore()
	if err != nil {
		fmt.Fprintf(e.errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.List()
	if err != nil {
		fmt.Fprintf(e.errOut, "list keys: %v\n", err)
		return 1
	}
	for _, entry := range entries {
		fmt.Fprintf(e.out, "%s %s\n", entry.Name, entry.PublicKeyBase64)
		for _, a := range entry.Agents {
			fmt.Fprintf(e.out, "  - %s\n", a)
		}
	}
	return 0
}

func cmdKeyExport(e *env, args []string) int {
	fs := newFlagSet(e, "key export")
	name := fs.String("name", "", "Key reference: <name> or <name>/<agent>")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if *name == "" {
		fmt.Fprintln(e.errOut, "missing --name")
		return 2
	}
	ks, err := e.keyStore()
	if err != nil {
		fmt.Fprintf(e.errOut, "keys: %v\n", err)
		return 1
	}
	pub, err := ks.Export(*name)
	if err != nil {
		fmt.Fprintf(e.errOut, "export key: %v\n", err)
		return 1
	}
	fmt.Fprintln(e.out, pub)
	return 0
}
