// Package uploads validates, stores and de-duplicates bid documents.
package uploads

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"actms/db"
	"actms/models"
)

// ErrRejected wraps every validation failure; the wrapped message is safe to
// show to the uploader.
var ErrRejected = errors.New("file rejected")

// DefaultMaxSize is the upload limit when none is configured.
const DefaultMaxSize = 15 << 20

const signatureWindow = 1024

// Store is the part of db.Storage that records uploads.
type Store interface {
	CreateUpload(ctx context.Context, u *models.Upload) error
	GetUploadByHash(ctx context.Context, sha256 string) (*models.Upload, error)
}

// Recorder observes upload outcomes: accepted, duplicate or rejected.
type Recorder interface {
	ObserveUpload(result string)
}

type Processor struct {
	dir      string
	maxSize  int64
	store    Store
	log      *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// NewProcessor stores files under dir, creating it if needed.
func NewProcessor(dir string, maxSize int64, store Store, log *zap.Logger) (*Processor, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Processor{
		dir:     dir,
		maxSize: maxSize,
		store:   store,
		log:     log.Named("uploads"),
		now:     time.Now,
	}, nil
}

func (p *Processor) SetRecorder(r Recorder) {
	p.recorder = r
}

func (p *Processor) MaxSize() int64 {
	return p.maxSize
}

// Result describes a processed upload.
type Result struct {
	Upload    *models.Upload `json:"file_info"`
	FilePath  string         `json:"file_path"`
	FileHash  string         `json:"file_hash"`
	Duplicate bool           `json:"duplicate"`
}

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// Process validates the content read from r under the client supplied
// filename, saves it and records it. Content already stored under the same
// hash is not written again.
func (p *Processor) Process(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	res, err := p.process(ctx, filename, r)
	if p.recorder != nil {
		switch {
		case errors.Is(err, ErrRejected):
			p.recorder.ObserveUpload("rejected")
		case err != nil:
			p.recorder.ObserveUpload("error")
		case res.Duplicate:
			p.recorder.ObserveUpload("duplicate")
		default:
			p.recorder.ObserveUpload("accepted")
		}
	}
	if errors.Is(err, ErrRejected) {
		p.log.Warn("upload rejected", zap.String("filename", filename), zap.Error(err))
	}
	return res, err
}

func (p *Processor) process(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	if filename == "" {
		return nil, reject("No filename provided")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	kind, ok := fileTypes[ext]
	if !ok {
		return nil, reject("File type not allowed: %s (allowed: %s)", ext, strings.Join(AllowedExtensions(), " "))
	}

	data, err := io.ReadAll(io.LimitReader(r, p.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	switch size := int64(len(data)); {
	case size > p.maxSize:
		return nil, reject("File too large (max: %d bytes)", p.maxSize)
	case size == 0:
		return nil, reject("Empty file not allowed")
	}

	if err := checkSignature(data, kind); err != nil {
		return nil, err
	}
	if err := checkFilename(filename); err != nil {
		return nil, err
	}
	detected := mimetype.Detect(data)
	if !kind.accepts(detected) {
		return nil, reject("File content (%s) does not match extension %s", baseType(detected.String()), ext)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	existing, err := p.store.GetUploadByHash(ctx, hash)
	switch {
	case err == nil:
		p.log.Info("duplicate upload", zap.String("sha256", hash), zap.String("saved_as", existing.SavedFilename))
		return &Result{Upload: existing, FilePath: p.Path(existing.SavedFilename), FileHash: hash, Duplicate: true}, nil
	case !errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("check duplicate: %w", err)
	}

	saved := secureName(filename, ext)
	path := filepath.Join(p.dir, saved)
	if err := writeFile(path, data); err != nil {
		return nil, err
	}
	if err := p.scanSaved(path, kind); err != nil {
		os.Remove(path)
		return nil, err
	}

	u := &models.Upload{
		OriginalFilename: filename,
		SavedFilename:    saved,
		SHA256:           hash,
		Size:             int64(len(data)),
		MimeType:         kind.mime,
	}
	if err := p.store.CreateUpload(ctx, u); err != nil {
		os.Remove(path)
		// a concurrent upload of the same content won the insert
		if existing, lookupErr := p.store.GetUploadByHash(ctx, hash); lookupErr == nil {
			return &Result{Upload: existing, FilePath: p.Path(existing.SavedFilename), FileHash: hash, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("record upload: %w", err)
	}
	p.log.Info("file uploaded", zap.String("saved_as", saved), zap.String("sha256", hash), zap.Int64("size", u.Size))
	return &Result{Upload: u, FilePath: path, FileHash: hash}, nil
}

func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close upload file: %w", err)
	}
	return os.Chmod(path, 0o644)
}

// scanSaved re-checks the file as it landed on disk.
func (p *Processor) scanSaved(path string, kind fileType) error {
	f, err := os.Open(path)
	if err != nil {
		return reject("File failed security scan: %v", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return reject("File failed security scan: %v", err)
	}
	if fi.Size() > p.maxSize {
		return reject("File failed security scan: size exceeds limit after save")
	}
	head := make([]byte, signatureWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return reject("File failed security scan: %v", err)
	}
	return checkSignature(head[:n], kind)
}

// Path is the on-disk location of a saved upload.
func (p *Processor) Path(saved string) string {
	return filepath.Join(p.dir, saved)
}

// Open returns a stored file by its saved name. Names that are not a plain
// file name inside the upload dir are reported as not existing.
func (p *Processor) Open(saved string) (*os.File, error) {
	if saved == "" || saved != filepath.Base(saved) || strings.HasPrefix(saved, ".") {
		return nil, os.ErrNotExist
	}
	return os.Open(p.Path(saved))
}

var (
	dangerousPrefixes = [][]byte{
		{0x4D, 0x5A},             // MZ
		{0x7F, 0x45, 0x4C, 0x46}, // ELF
		{0xCA, 0xFE, 0xBA, 0xBE}, // Java class
	}
	zipPrefix = []byte{0x50, 0x4B, 0x03, 0x04}
	dosStub   = []byte("This program cannot be run in DOS mode")
)

func checkSignature(data []byte, kind fileType) error {
	head := data[:min(len(data), signatureWindow)]
	for _, sig := range dangerousPrefixes {
		if bytes.HasPrefix(head, sig) {
			return reject("Dangerous file signature detected")
		}
	}
	if bytes.HasPrefix(head, zipPrefix) && !kind.zip {
		return reject("Dangerous file signature detected")
	}
	lower := bytes.ToLower(head)
	if bytes.Contains(lower, []byte("<script")) || bytes.Contains(lower, []byte("javascript:")) {
		return reject("Potential script content detected")
	}
	if bytes.Contains(head, dosStub) {
		return reject("Embedded executable detected")
	}
	return nil
}

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

func checkFilename(name string) error {
	switch {
	case strings.Contains(name, "..") || strings.ContainsAny(name, `/\`):
		return reject("Path traversal attempt in filename")
	case strings.ContainsRune(name, 0):
		return reject("Null byte in filename")
	case len(name) > 255:
		return reject("Filename too long")
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if reservedNames[strings.ToUpper(stem)] {
		return reject("Reserved filename not allowed")
	}
	return nil
}

// secureName keeps a readable ASCII stem and makes the name unique.
func secureName(original, ext string) string {
	stem := strings.TrimSuffix(original, filepath.Ext(original))
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	clean := strings.Trim(b.String(), "._")
	if clean == "" {
		clean = "upload"
	}
	if len(clean) > 100 {
		clean = clean[:100]
	}
	return clean + "_" + uuid.NewString() + ext
}
