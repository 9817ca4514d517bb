package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissingConfig = errors.New("missing configuration")

// Config is the runtime configuration shared by every command.
type Config struct {
	RPCURL            string `yaml:"rpc_url"`
	PrivateKey        string `yaml:"private_key"`
	SemaphoreAddress  string `yaml:"semaphore_address"`
	GroupID           string `yaml:"group_id"`
	UserIDSeed        string `yaml:"user_id_seed"`
	RegistryAddress   string `yaml:"registry_address"`
	ArtifactsDir      string `yaml:"artifacts_dir"`
	SnarkArtifactsDir string `yaml:"snark_artifacts_dir"`
	SnarkJSBin        string `yaml:"snarkjs_bin"`
	MerkleTreeDepth   int    `yaml:"merkle_tree_depth"`
	GroupDuration     uint64 `yaml:"group_duration"`
	LocalVerifier     string `yaml:"local_verifier"`
	ClaimsDB          string `yaml:"claims_db"`
	LogLevel          string `yaml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		RPCURL:            "http://127.0.0.1:8545",
		ArtifactsDir:      "artifacts",
		SnarkArtifactsDir: "snark-artifacts",
		SnarkJSBin:        "snarkjs",
		MerkleTreeDepth:   1,
		GroupDuration:     20,
		LocalVerifier:     "gnark",
		ClaimsDB:          "claims.db",
		LogLevel:          "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file, the
// .env file and the process environment, each layer overriding the previous.
// Empty paths and missing files are skipped.
func Load(envFile, yamlFile string) (*Config, error) {
	cfg := DefaultConfig()

	if yamlFile != "" {
		bz, err := os.ReadFile(yamlFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(bz, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", yamlFile, err)
			}
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		default:
			dotenv = m
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"RPC_URL":             &c.RPCURL,
		"PRIVATE_KEY":         &c.PrivateKey,
		"SEMAPHORE_ADDRESS":   &c.SemaphoreAddress,
		"GROUP_ID":            &c.GroupID,
		"USER_ID_SEED":        &c.UserIDSeed,
		"ARTIFACTS_DIR":       &c.ArtifactsDir,
		"SNARK_ARTIFACTS_DIR": &c.SnarkArtifactsDir,
		"SNARKJS_BIN":         &c.SnarkJSBin,
		"LOCAL_VERIFIER":      &c.LocalVerifier,
		"CLAIMS_DB":           &c.ClaimsDB,
		"LOG_LEVEL":           &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	// the older scripts wrote REGISTRY_ADDRESS
	if v, ok := lookup("OWNERSHIP_REGISTRY_ADDRESS"); ok && v != "" {
		c.RegistryAddress = v
	} else if v, ok := lookup("REGISTRY_ADDRESS"); ok && v != "" {
		c.RegistryAddress = v
	}

	if v, ok := lookup("MERKLE_TREE_DEPTH"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid MERKLE_TREE_DEPTH %q: %w", v, err)
		}
		c.MerkleTreeDepth = n
	}
	if v, ok := lookup("GROUP_DURATION"); ok && v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid GROUP_DURATION %q: %w", v, err)
		}
		c.GroupDuration = n
	}
	return nil
}

func (c *Config) GroupIDInt() (*big.Int, error) {
	v := strings.TrimSpace(c.GroupID)
	if v == "" {
		return nil, fmt.Errorf("%w: GROUP_ID", ErrMissingConfig)
	}
	id, ok := new(big.Int).SetString(v, 0)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid GROUP_ID %q", c.GroupID)
	}
	return id, nil
}

func (c *Config) SemaphoreAddr() (common.Address, error) {
	return address("SEMAPHORE_ADDRESS", c.SemaphoreAddress)
}

// RegistryAddr treats the literal "undefined" left behind by a failed
// deployment script as unset.
func (c *Config) RegistryAddr() (common.Address, error) {
	return address("OWNERSHIP_REGISTRY_ADDRESS", c.RegistryAddress)
}

func (c *Config) Key() (string, error) {
	if strings.TrimSpace(c.PrivateKey) == "" {
		return "", fmt.Errorf("%w: PRIVATE_KEY", ErrMissingConfig)
	}
	return c.PrivateKey, nil
}

func (c *Config) Seed() (string, error) {
	if c.UserIDSeed == "" {
		return "", fmt.Errorf("%w: USER_ID_SEED", ErrMissingConfig)
	}
	return c.UserIDSeed, nil
}

func address(name, v string) (common.Address, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "undefined" {
		return common.Address{}, fmt.Errorf("%w: %s", ErrMissingConfig, name)
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid %s %q", name, v)
	}
	return common.HexToAddress(v), nil
}
