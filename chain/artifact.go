package chain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrAmbiguousArtifact = errors.New("artifact name is ambiguous")
	ErrUnlinked          = errors.New("bytecode has unlinked libraries")
)

type LinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Artifact is a hardhat compilation artifact.
type Artifact struct {
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
	// source -> library -> byte ranges of the placeholders in Bytecode
	LinkReferences map[string]map[string][]LinkReference `json:"linkReferences"`
}

// LoadArtifact finds the artifact of a contract under dir. name is either a
// contract name or a fully qualified "path/File.sol:Name".
func LoadArtifact(dir, name string) (*Artifact, error) {
	var path string
	if source, contract, ok := strings.Cut(name, ":"); ok {
		path = filepath.Join(dir, filepath.FromSlash(source), contract+".json")
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
		}
	} else {
		var matches []string
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && d.Name() == "build-info" {
				return filepath.SkipDir
			}
			if !d.IsDir() && d.Name() == name+".json" {
				matches = append(matches, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, dir)
		case 1:
			path = matches[0]
		default:
			sort.Strings(matches)
			return nil, fmt.Errorf("%w: %s matches %s", ErrAmbiguousArtifact, name, strings.Join(matches, ", "))
		}
	}

	bz, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}
	var art Artifact
	if err := json.Unmarshal(bz, &art); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	if art.Bytecode == "" || art.Bytecode == "0x" {
		return nil, fmt.Errorf("artifact %s has no bytecode", path)
	}
	return &art, nil
}

// FullyQualifiedName is "sourceName:contractName", the key libraries are
// linked by.
func (a *Artifact) FullyQualifiedName() string {
	return a.SourceName + ":" + a.ContractName
}

func (a *Artifact) ParsedABI() (abi.ABI, error) {
	return abi.JSON(bytes.NewReader(a.ABI))
}

// Link writes library addresses over the placeholders listed in
// linkReferences and returns the bytecode. libs is keyed by the fully
// qualified library name.
func (a *Artifact) Link(libs map[string]common.Address) ([]byte, error) {
	code := []byte(strings.TrimPrefix(a.Bytecode, "0x"))
	for source, names := range a.LinkReferences {
		for lib, refs := range names {
			fqn := source + ":" + lib
			addr, ok := libs[fqn]
			if !ok {
				return nil, fmt.Errorf("%w: missing address for %s", ErrUnlinked, fqn)
			}
			addrHex := hex.EncodeToString(addr.Bytes())
			for _, ref := range refs {
				start, end := ref.Start*2, (ref.Start+ref.Length)*2
				if ref.Length != common.AddressLength || start < 0 || end > len(code) {
					return nil, fmt.Errorf("invalid link reference %s at %d", fqn, ref.Start)
				}
				copy(code[start:end], addrHex)
			}
		}
	}
	if i := bytes.Index(code, []byte("__")); i >= 0 {
		return nil, fmt.Errorf("%w: placeholder at byte %d", ErrUnlinked, i/2)
	}
	bin, err := hex.DecodeString(string(code))
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode of %s: %w", a.ContractName, err)
	}
	return bin, nil
}

// DeployData is the linked bytecode followed by the packed constructor
// arguments.
func (a *Artifact) DeployData(libs map[string]common.Address, args ...any) ([]byte, error) {
	code, err := a.Link(libs)
	if err != nil {
		return nil, err
	}
	parsed, err := a.ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("invalid abi of %s: %w", a.ContractName, err)
	}
	ctor, err := parsed.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("constructor of %s: %w", a.ContractName, err)
	}
	return append(code, ctor...), nil
}
