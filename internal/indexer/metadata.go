package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

const (
	MetadataDir   = ".metadata"
	BlockDir      = "block"
	TermInfoFile  = "term_info.txt"
	DocIDsFile    = "doc_ids.txt"
	IndexInfoFile = "index.yaml"
)

// Metadata records how an index was built. Queries must normalise and score
// with the same settings, so the searcher reads them from here instead of
// from its own configuration.
type Metadata struct {
	CreatedAt        time.Time              `yaml:"createdAt"`
	Source           string                 `yaml:"source"`
	Positional       bool                   `yaml:"positional"`
	Compress         bool                   `yaml:"compress"`
	RenameDocs       bool                   `yaml:"renameDocs"`
	FileLocationStep int                    `yaml:"fileLocationStep"`
	Tokenizer        config.TokenizerConfig `yaml:"tokenizer"`
	Ranking          config.RankingConfig   `yaml:"ranking"`
	Documents        int                    `yaml:"documents"`
	TotalLength      int64                  `yaml:"totalLength"`
	AvgDocLength     float64                `yaml:"avgDocLength"`
	Terms            int                    `yaml:"terms"`
	Postings         int                    `yaml:"postings"`
	Blocks           int                    `yaml:"blocks"`
	Segments         int                    `yaml:"segments"`
	// SegmentFiles names the segment files in the index directory. Only these
	// are read at query time and removed on re-indexing.
	SegmentFiles []string `yaml:"segmentFiles"`
}

func MetadataPath(dir, name string) string {
	return filepath.Join(dir, MetadataDir, name)
}

func SaveMetadata(dir string, md *Metadata) error {
	data, err := yaml.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshaling index metadata: %w", err)
	}
	if err := os.WriteFile(MetadataPath(dir, IndexInfoFile), data, 0644); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads the metadata of the index in dir. A missing directory or
// metadata file is ErrIndexNotFound.
func LoadMetadata(dir string) (*Metadata, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, apperrors.Newf(apperrors.ErrIndexNotFound, "index directory %s does not exist", dir)
	}
	data, err := os.ReadFile(MetadataPath(dir, IndexInfoFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.ErrIndexNotFound, "%s holds no index metadata", dir)
		}
		return nil, fmt.Errorf("reading index metadata: %w", err)
	}
	md := &Metadata{}
	if err := yaml.Unmarshal(data, md); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptIndex, "parsing index metadata: %v", err)
	}
	return md, nil
}
