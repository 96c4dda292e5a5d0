package uploads

import (
	"maps"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// fileType describes an allowed extension: its declared MIME type, the
// sniffed types its content may have, and whether it is a ZIP container.
type fileType struct {
	mime    string
	content []string
	zip     bool
}

const (
	mimeZip = "application/zip"
	mimeOLE = "application/x-ole-storage"
	mimeTxt = "text/plain"
)

var fileTypes = map[string]fileType{
	".pdf":  {mime: "application/pdf", content: []string{"application/pdf"}},
	".doc":  {mime: "application/msword", content: []string{"application/msword", mimeOLE}},
	".docx": {mime: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", content: []string{mimeZip}, zip: true},
	".txt":  {mime: "text/plain", content: []string{mimeTxt}},
	".rtf":  {mime: "text/rtf", content: []string{"text/rtf", mimeTxt}},
	".odt":  {mime: "application/vnd.oasis.opendocument.text", content: []string{mimeZip}, zip: true},
	".xls":  {mime: "application/vnd.ms-excel", content: []string{"application/vnd.ms-excel", mimeOLE}},
	".xlsx": {mime: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content: []string{mimeZip}, zip: true},
	".csv":  {mime: "text/csv", content: []string{"text/csv", mimeTxt}},
	".ods":  {mime: "application/vnd.oasis.opendocument.spreadsheet", content: []string{mimeZip}, zip: true},
	".jpg":  {mime: "image/jpeg", content: []string{"image/jpeg"}},
	".jpeg": {mime: "image/jpeg", content: []string{"image/jpeg"}},
	".png":  {mime: "image/png", content: []string{"image/png"}},
	".gif":  {mime: "image/gif", content: []string{"image/gif"}},
	".bmp":  {mime: "image/bmp", content: []string{"image/bmp"}},
	".zip":  {mime: mimeZip, content: []string{mimeZip}, zip: true},
	".rar":  {mime: "application/x-rar-compressed", content: []string{"application/x-rar-compressed"}},
	".7z":   {mime: "application/x-7z-compressed", content: []string{"application/x-7z-compressed"}},
}

// accepts walks the sniffed type and its parents, so a .docx detected as
// a Word document still matches its application/zip root.
func (t fileType) accepts(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		for _, want := range t.content {
			if m.Is(want) || baseType(m.String()) == want {
				return true
			}
		}
	}
	return false
}

func baseType(m string) string {
	base, _, _ := strings.Cut(m, ";")
	return strings.TrimSpace(base)
}

// AllowedExtensions lists the accepted file extensions in sorted order.
func AllowedExtensions() []string {
	return slices.Sorted(maps.Keys(fileTypes))
}
