package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/starford/notepress/internal/apperr"
)

func write(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRead_UTF8(t *testing.T) {
	p := write(t, "note.md", append([]byte{0xEF, 0xBB, 0xBF}, "# 标题\n"...))
	doc, err := Read(p, DefaultExtensions, []string{"gbk"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Text != "# 标题\n" || doc.Encoding != "utf-8" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestRead_GBKFallback(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("# 中文笔记\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p := write(t, "legacy.markdown", []byte(gbk))

	doc, err := Read(p, DefaultExtensions, []string{"gbk"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Text != "# 中文笔记\n" || doc.Encoding != "gbk" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestRead_UndecodableIsEncodingError(t *testing.T) {
	p := write(t, "bad.md", []byte{0xff, 0xfe, 0xfd})
	if _, err := Read(p, DefaultExtensions, nil); !errors.Is(err, apperr.ErrEncoding) {
		t.Errorf("err = %v, want ErrEncoding", err)
	}
}

func TestRead_InvalidInput(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"missing":   filepath.Join(dir, "nope.md"),
		"directory": dir,
		"extension": write(t, "note.txt", []byte("x")),
	}
	for name, p := range cases {
		if _, err := Read(p, DefaultExtensions, nil); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}
}

func TestRead_ExtensionCaseInsensitive(t *testing.T) {
	p := write(t, "NOTE.MD", []byte("x"))
	if _, err := Read(p, DefaultExtensions, nil); err != nil {
		t.Errorf("Read: %v", err)
	}
}

func TestDestinationName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/vault/My First Note.md", "My-First-Note.md"},
		{"/vault/draft.markdown", "draft.md"},
		{"relative/中文 标题.md", "中文-标题.md"},
		{"/vault/no-spaces.v2.md", "no-spaces.v2.md"},
	}
	for _, tc := range cases {
		if got := DestinationName(tc.in); got != tc.want {
			t.Errorf("DestinationName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateEncodings(t *testing.T) {
	if err := ValidateEncodings([]string{"gbk", "gb18030", "big5", "windows-1252"}); err != nil {
		t.Errorf("ValidateEncodings: %v", err)
	}
	if err := ValidateEncodings([]string{"klingon"}); err == nil {
		t.Error("expected error for unknown encoding")
	}
}
