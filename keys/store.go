package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kya.dev/kya/kya"
)

const (
	keyFileName = "agent.key"
	agentsDir   = "agents"
)

// KeyStore is a directory of agent key files.
//
// Supports Ed25519 keys only. Keys are stored in the clear with owner-only
// permissions; the store is a local development aid, not a vault.
type KeyStore struct {
	Directory string
}

// KeyEntry describes one named key and the agent subkeys derived from it.
type KeyEntry struct {
	Name            string   `json:"name"`
	PublicKeyBase64 string   `json:"public_key_base64"`
	Agents          []string `json:"agents,omitempty"`
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".kya", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("key name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key name", char)
	}
	return nil
}

// ParseRef splits a key reference of the form "name" or "name/agent".
func ParseRef(ref string) (name, agent string, err error) {
	name, agent, derived := strings.Cut(ref, "/")
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	if derived {
		if err := CheckKeyName(agent); err != nil {
			return "", "", err
		}
	}
	return name, agent, nil
}

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func (ks *KeyStore) keyPath(name, agent string) string {
	if agent == "" {
		return filepath.Join(ks.Directory, name, keyFileName)
	}
	return filepath.Join(ks.Directory, name, agentsDir, agent+".key")
}

func (ks *KeyStore) saveKeyToFile(filePath string, kp *kya.KeyPair, overwrite bool) error {
	if kp == nil {
		return errors.New("missing key pair")
	}
	data, err := json.MarshalIndent(kp.Encode(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.Write(append(data, '\n')); err != nil {
		return err
	}
	return file.Close()
}

func (ks *KeyStore) loadKeyFromFile(filePath string) (*kya.KeyPair, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var enc kya.EncodedKeyPair
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", filePath, err)
	}
	kp, err := enc.Decode()
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", filePath, err)
	}
	if !kp.SecretKey.Public().(ed25519.PublicKey).Equal(kp.PublicKey) {
		return nil, fmt.Errorf("key file %s: public key does not match secret key", filePath)
	}
	return kp, nil
}

// Init stores kp under name and returns the key file path.
func (ks *KeyStore) Init(name string, kp *kya.KeyPair, overwrite bool) (filePath string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", err
	}
	filePath = ks.keyPath(name, "")
	if err := ks.saveKeyToFile(filePath, kp, overwrite); err != nil {
		return "", err
	}
	return filePath, nil
}

// Derive creates the subkey for agent from the named key's seed.
func (ks *KeyStore) Derive(from, agent string, overwrite bool) (kp *kya.KeyPair, filePath string, err error) {
	if err := CheckKeyName(from); err != nil {
		return nil, "", err
	}
	if err := CheckKeyName(agent); err != nil {
		return nil, "", err
	}
	root, err := ks.loadKeyFromFile(ks.keyPath(from, ""))
	if err != nil {
		return nil, "", err
	}
	seed, err := DeriveAgentSeed(root.SecretKey.Seed(), agent)
	if err != nil {
		return nil, "", err
	}
	kp, err = kya.KeyPairFromSeed(seed)
	if err != nil {
		return nil, "", err
	}
	filePath = ks.keyPath(from, agent)
	if err := ks.saveKeyToFile(filePath, kp, overwrite); err != nil {
		return nil, "", err
	}
	return kp, filePath, nil
}

// Load returns the key pair for ref ("name" or "name/agent").
func (ks *KeyStore) Load(ref string) (*kya.KeyPair, error) {
	name, agent, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	return ks.loadKeyFromFile(ks.keyPath(name, agent))
}

// Export returns the base64 public key for ref, the form registered with the
// backend.
func (ks *KeyStore) Export(ref string) (string, error) {
	kp, err := ks.Load(ref)
	if err != nil {
		return "", err
	}
	return kp.PublicKeyBase64(), nil
}

func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() && CheckKeyName(entry.Name()) == nil {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []KeyEntry
	for _, name := range names {
		kp, err := ks.loadKeyFromFile(ks.keyPath(name, ""))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		agentEntries, aerr := os.ReadDir(filepath.Join(ks.Directory, name, agentsDir))
		var agents []string
		if aerr == nil {
			for _, agentEntry := range agentEntries {
				if agentEntry.IsDir() {
					continue
				}
				if strings.HasSuffix(agentEntry.Name(), ".key") {
					agents = append(agents, strings.TrimSuffix(agentEntry.Name(), ".key"))
				}
			}
			sort.Strings(agents)
		}
		result = append(result, KeyEntry{Name: name, PublicKeyBase64: kp.PublicKeyBase64(), Agents: agents})
	}
	return result, nil
}
