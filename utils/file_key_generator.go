package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type FileKeyStrategy string

const (
	// StrategyModelScoped puts every artifact under <prefix>/<modelID>/.
	StrategyModelScoped FileKeyStrategy = "model_scoped"
	StrategyDateBased   FileKeyStrategy = "date_based"
	StrategyHashBased   FileKeyStrategy = "hash_based"
)

var (
	dangerousChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	unsafeChars    = regexp.MustCompile(`[^\p{L}\p{N}_\-.]`)
	repeatedChars  = regexp.MustCompile(`[_\-\.]{2,}`)
)

type FileKeyGenerator struct {
	strategy   FileKeyStrategy
	prefix     string
	maxNameLen int
	now        func() time.Time
}

func NewFileKeyGenerator(strategy FileKeyStrategy, prefix string) *FileKeyGenerator {
	return &FileKeyGenerator{
		strategy:   strategy,
		prefix:     strings.Trim(prefix, "/"),
		maxNameLen: 50,
		now:        time.Now,
	}
}

func (fkg *FileKeyGenerator) Prefix() string {
	return fkg.prefix
}

// GenerateFileKey always returns a key below the generator's prefix.
func (fkg *FileKeyGenerator) GenerateFileKey(filename, modelID string) string {
	switch fkg.strategy {
	case StrategyDateBased:
		return fkg.generateDateBasedKey(filename, modelID)
	case StrategyHashBased:
		return fkg.generateHashBasedKey(filename, modelID)
	default:
		return fkg.generateModelScopedKey(filename, modelID)
	}
}

func (fkg *FileKeyGenerator) generateModelScopedKey(filename, modelID string) string {
	if modelID == "" {
		modelID = uuid.New().String()
	}
	return fmt.Sprintf("%s/%s/%s", fkg.prefix, modelID, fkg.CleanFilename(filename))
}

func (fkg *FileKeyGenerator) generateDateBasedKey(filename, modelID string) string {
	now := fkg.now().UTC()
	uid := modelID
	if uid == "" {
		uid = uuid.New().String()[:8]
	}
	return fmt.Sprintf("%s/%s/%s_%s", fkg.prefix, now.Format("2006/01/02"), uid, fkg.CleanFilename(filename))
}

func (fkg *FileKeyGenerator) generateHashBasedKey(filename, modelID string) string {
	content := fmt.Sprintf("%s_%s_%d", filename, modelID, fkg.now().UnixNano())
	hash := md5.Sum([]byte(content))
	return fmt.Sprintf("%s/hash_%s%s", fkg.prefix, hex.EncodeToString(hash[:]), strings.ToLower(filepath.Ext(filename)))
}

// CleanFilename keeps the extension (lower-cased) and reduces the base name
// to letters, digits, '_', '-' and '.'.
func (fkg *FileKeyGenerator) CleanFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(filename))
	baseName := strings.TrimSuffix(filename, filepath.Ext(filename))

	cleanBase := sanitizeFilename(baseName)
	if len(cleanBase) > fkg.maxNameLen {
		cleanBase = ensureValidUTF8End(cleanBase[:fkg.maxNameLen])
	}
	if cleanBase == "" || cleanBase == "_" {
		cleanBase = "model"
	}
	return cleanBase + ext
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = dangerousChars.ReplaceAllString(name, "")
	name = unsafeChars.ReplaceAllString(name, "_")
	name = repeatedChars.ReplaceAllString(name, "_")
	return strings.Trim(name, "_-.")
}

// ensureValidUTF8End drops a multi-byte rune cut in half by truncation.
func ensureValidUTF8End(s string) string {
	for i := len(s) - 1; i >= 0 && i >= len(s)-4; i-- {
		if s[i]&0x80 == 0 {
			return s
		}
		if s[i]&0xC0 == 0xC0 {
			return s[:i]
		}
	}
	return s
}
