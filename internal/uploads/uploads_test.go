package uploads

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"actms/db"
	"actms/models"
)

type fakeStore struct {
	mu      sync.Mutex
	byHash  map[string]*models.Upload
	nextID  int
	failErr error
	// lost is stored as if another request inserted it first
	lost *models.Upload
}

func newFakeStore() *fakeStore {
	return &fakeStore{byHash: map[string]*models.Upload{}}
}

func (s *fakeStore) CreateUpload(_ context.Context, u *models.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if s.lost != nil {
		s.byHash[u.SHA256] = s.lost
		return errors.New("UNIQUE constraint failed: uploads.sha256")
	}
	s.nextID++
	u.ID = s.nextID
	s.byHash[u.SHA256] = u
	return nil
}

func (s *fakeStore) GetUploadByHash(_ context.Context, hash string) (*models.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byHash[hash]; ok {
		return u, nil
	}
	return nil, db.ErrNotFound
}

type outcomes []string

func (o *outcomes) ObserveUpload(result string) { *o = append(*o, result) }

const pdfBody = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n"

func newProcessor(t *testing.T, maxSize int64) (*Processor, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	p, err := NewProcessor(filepath.Join(t.TempDir(), "uploads"), maxSize, store, zap.NewNop())
	require.NoError(t, err)
	return p, store
}

func zipBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("readme.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestProcessAccepts(t *testing.T) {
	p, store := newProcessor(t, 0)
	rec := &outcomes{}
	p.SetRecorder(rec)

	res, err := p.Process(context.Background(), "Technical Proposal.pdf", strings.NewReader(pdfBody))
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.Len(t, res.FileHash, 64)
	require.Equal(t, "application/pdf", res.Upload.MimeType)
	require.True(t, strings.HasPrefix(res.Upload.SavedFilename, "Technical_Proposal_"))
	require.True(t, strings.HasSuffix(res.Upload.SavedFilename, ".pdf"))
	require.Equal(t, 1, res.Upload.ID)
	require.Contains(t, store.byHash, res.FileHash)

	fi, err := os.Stat(res.FilePath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), fi.Mode().Perm())

	f, err := p.Open(res.Upload.SavedFilename)
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	f.Close()
	require.NoError(t, err)
	require.Equal(t, pdfBody, string(got))
	require.Equal(t, outcomes{"accepted"}, *rec)
}

func TestProcessDuplicate(t *testing.T) {
	p, _ := newProcessor(t, 0)
	first, err := p.Process(context.Background(), "a.txt", strings.NewReader("same content"))
	require.NoError(t, err)
	second, err := p.Process(context.Background(), "b.txt", strings.NewReader("same content"))
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, first.Upload.ID, second.Upload.ID)

	entries, err := os.ReadDir(p.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestProcessZipContainers(t *testing.T) {
	p, _ := newProcessor(t, 0)
	_, err := p.Process(context.Background(), "docs.zip", bytes.NewReader(zipBytes(t)))
	require.NoError(t, err)

	_, err = p.Process(context.Background(), "fake.pdf", bytes.NewReader(zipBytes(t)))
	require.ErrorIs(t, err, ErrRejected)
	require.ErrorContains(t, err, "Dangerous file signature")
}

func TestProcessRejects(t *testing.T) {
	png := "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 32)
	tests := []struct {
		name     string
		filename string
		body     string
		reason   string
	}{
		{"no name", "", "x", "No filename provided"},
		{"extension", "setup.exe", "x", "File type not allowed: .exe"},
		{"empty", "empty.txt", "", "Empty file not allowed"},
		{"too large", "big.txt", strings.Repeat("a", 65), "File too large"},
		{"windows exe", "invoice.pdf", "MZ\x90\x00rest", "Dangerous file signature detected"},
		{"elf", "notes.txt", "\x7fELF\x02\x01", "Dangerous file signature detected"},
		{"java class", "a.doc", "\xca\xfe\xba\xbe\x00", "Dangerous file signature detected"},
		{"script", "notes.txt", "hello <SCRIPT>alert(1)</script>", "Potential script content detected"},
		{"javascript url", "notes.txt", "click javascript:void(0)", "Potential script content detected"},
		{"dos stub", "notes.txt", "xx This program cannot be run in DOS mode xx", "Embedded executable detected"},
		{"traversal", "../etc/passwd.txt", "hello", "Path traversal attempt"},
		{"backslash", `..\\boot.txt`, "hello", "Path traversal attempt"},
		{"null byte", "a\x00b.txt", "hello", "Null byte in filename"},
		{"long name", strings.Repeat("n", 256) + ".txt", "hello", "Filename too long"},
		{"reserved", "con.txt", "hello", "Reserved filename not allowed"},
		{"mismatch", "scan.pdf", "plain text pretending", "does not match extension .pdf"},
		{"png as jpg", "photo.jpg", png, "does not match extension .jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, store := newProcessor(t, 64)
			_, err := p.Process(context.Background(), tt.filename, strings.NewReader(tt.body))
			require.ErrorIs(t, err, ErrRejected)
			require.ErrorContains(t, err, tt.reason)
			require.Empty(t, store.byHash)
		})
	}
}

func TestProcessStoreFailureRemovesFile(t *testing.T) {
	p, store := newProcessor(t, 0)
	store.failErr = errors.New("disk full")
	_, err := p.Process(context.Background(), "a.txt", strings.NewReader("content"))
	require.ErrorContains(t, err, "disk full")
	require.False(t, errors.Is(err, ErrRejected))

	entries, err := os.ReadDir(p.dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestProcessConcurrentDuplicate(t *testing.T) {
	p, store := newProcessor(t, 0)
	rec := &outcomes{}
	p.SetRecorder(rec)
	store.lost = &models.Upload{ID: 7, SavedFilename: "a_first.txt", SHA256: "winner"}

	res, err := p.Process(context.Background(), "a.txt", strings.NewReader("content"))
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Equal(t, 7, res.Upload.ID)
	require.Equal(t, p.Path("a_first.txt"), res.FilePath)
	require.Equal(t, outcomes{"duplicate"}, *rec)

	entries, err := os.ReadDir(p.dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestAllowedExtensions(t *testing.T) {
	exts := AllowedExtensions()
	require.True(t, slices.IsSorted(exts))
	require.Contains(t, exts, ".pdf")
	require.Contains(t, exts, ".docx")
	require.NotContains(t, exts, ".exe")

	p, _ := newProcessor(t, 0)
	_, err := p.Process(context.Background(), "setup.exe", strings.NewReader("x"))
	require.ErrorContains(t, err, ".pdf")
}

func TestOpenRejectsTraversal(t *testing.T) {
	p, _ := newProcessor(t, 0)
	for _, name := range []string{"", "../x.pdf", "a/b.pdf", ".hidden"} {
		_, err := p.Open(name)
		require.ErrorIs(t, err, os.ErrNotExist, name)
	}
}

func TestSecureName(t *testing.T) {
	n := secureName("Bid (final) v2.docx", ".docx")
	require.True(t, strings.HasPrefix(n, "Bid_final_v2_"), n)
	require.True(t, strings.HasSuffix(n, ".docx"))

	require.True(t, strings.HasPrefix(secureName("ಟೆಂಡರ್.pdf", ".pdf"), "upload_"))
}
