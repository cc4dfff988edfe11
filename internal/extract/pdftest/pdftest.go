// Package pdftest writes small PDF files for tests.
//
// Each page holds a single line of Helvetica text. Documents can be
// encrypted with the standard security handler (RC4, 128-bit, revision 3).
package pdftest

import (
	"bytes"
	"crypto/md5"
	"crypto/rc4"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// passwordPad is the padding string of the PDF standard security handler.
var passwordPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41, 0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80, 0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// permissions is the /P entry: every permission bit set except the two
// reserved low bits.
var permissions int32 = -4

// Build returns a PDF with one page per entry of pages.
func Build(pages ...string) []byte {
	return build(pages, nil)
}

// BuildEncrypted returns a PDF whose content streams are encrypted with
// userPassword.
func BuildEncrypted(userPassword string, pages ...string) []byte {
	return build(pages, newSecurity(userPassword))
}

// WriteFile writes data to a file in a test temp dir and returns its path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

type security struct {
	key   []byte
	owner []byte
	user  []byte
	id    []byte
}

func newSecurity(password string) *security {
	s := &security{
		owner: bytes.Repeat([]byte{0x5A}, 32),
		id:    []byte("pdftest-document"),
	}

	pw := []byte(password)
	if len(pw) > 32 {
		pw = pw[:32]
	}
	p := uint32(permissions)

	h := md5.New()
	h.Write(pw)
	h.Write(passwordPad[:32-len(pw)])
	h.Write(s.owner)
	h.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
	h.Write(s.id)
	key := h.Sum(nil)
	for i := 0; i < 50; i++ {
		sum := md5.Sum(key[:16])
		key = sum[:]
	}
	s.key = key[:16]

	u := md5.Sum(append(append([]byte{}, passwordPad...), s.id...))
	userHash := u[:]
	for i := 0; i <= 19; i++ {
		k := make([]byte, len(s.key))
		for j := range k {
			k[j] = s.key[j] ^ byte(i)
		}
		c, _ := rc4.NewCipher(k)
		c.XORKeyStream(userHash, userHash)
	}
	s.user = append(userHash, bytes.Repeat([]byte{0}, 16)...)
	return s
}

// encrypt applies the per-object RC4 key for object num, generation 0.
func (s *security) encrypt(num int, data []byte) []byte {
	h := md5.New()
	h.Write(s.key)
	h.Write([]byte{byte(num), byte(num >> 8), byte(num >> 16), 0, 0})
	c, _ := rc4.NewCipher(h.Sum(nil))
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

func build(pages []string, sec *security) []byte {
	var buf bytes.Buffer
	offsets := map[int]int{}

	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	writeObj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, text := range pages {
		contentNum := 4 + 2*i
		pageNum := 5 + 2*i

		content := []byte(fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", escape(text)))
		if sec != nil {
			content = sec.encrypt(contentNum, content)
		}
		offsets[contentNum] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n<< /Length %d >>\nstream\n", contentNum, len(content))
		buf.Write(content)
		buf.WriteString("\nendstream\nendobj\n")

		writeObj(pageNum, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			contentNum))
	}

	size := 4 + 2*len(pages)
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num < size; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}

	trailer := fmt.Sprintf("/Size %d /Root 1 0 R", size)
	if sec != nil {
		trailer += fmt.Sprintf(
			" /Encrypt << /Filter /Standard /V 2 /R 3 /Length 128 /O <%s> /U <%s> /P %d >> /ID [<%s> <%s>]",
			hex.EncodeToString(sec.owner), hex.EncodeToString(sec.user), permissions,
			hex.EncodeToString(sec.id), hex.EncodeToString(sec.id))
	}
	fmt.Fprintf(&buf, "trailer\n<< %s >>\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return buf.Bytes()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
