package filestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	return s
}

// TestNew_CreatesDirectory проверяет создание директории uploads.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")

	s, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	if s.Root() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, s.Root())
	}

	info, err := os.Stat(filepath.Join(dir, UploadsDir))
	if err != nil {
		t.Fatalf("директория uploads не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("uploads не является директорией")
	}
}

// TestSaveFile проверяет сохранение файла с подсчётом SHA-256.
func TestSaveFile(t *testing.T) {
	s := newStore(t)

	content := []byte("region,total\nnorth,10\nsouth,20\n")
	result, err := s.SaveFile(bytes.NewReader(content), "sales report.csv", "alice")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}

	expected := sha256.Sum256(content)
	if result.Checksum != hex.EncodeToString(expected[:]) {
		t.Errorf("checksum не совпадает: %s", result.Checksum)
	}

	if !strings.HasPrefix(result.StoragePath, "uploads/salesreport_alice_") {
		t.Errorf("неожиданный путь хранения: %s", result.StoragePath)
	}
	if !strings.HasSuffix(result.StoragePath, ".csv") {
		t.Errorf("расширение должно сохраниться: %s", result.StoragePath)
	}

	f, err := s.Open(result.StoragePath)
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}

	if _, err := os.Stat(filepath.Join(s.Root(), filepath.FromSlash(result.StoragePath)) + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл не должен существовать")
	}
}

// TestSaveFile_ReaderError проверяет, что при ошибке чтения на диске ничего не остаётся.
func TestSaveFile_ReaderError(t *testing.T) {
	s := newStore(t)

	_, err := s.SaveFile(io.MultiReader(strings.NewReader("a,b\n"), errReader{}), "broken.csv", "alice")
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}

	entries, err := os.ReadDir(filepath.Join(s.Root(), UploadsDir))
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("в uploads остались файлы: %d", len(entries))
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("обрыв соединения") }

// TestOpen_NotFound проверяет ErrFileNotFound для отсутствующего файла.
func TestOpen_NotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.Open("uploads/missing.csv")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ошибка = %v, хотели ErrFileNotFound", err)
	}
}

// TestDeleteFile проверяет удаление и повторное удаление файла.
func TestDeleteFile(t *testing.T) {
	s := newStore(t)

	result, err := s.SaveFile(strings.NewReader("x"), "a.xlsx", "bob")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	if !s.FileExists(result.StoragePath) {
		t.Fatal("файл должен существовать")
	}

	if err := s.DeleteFile(result.StoragePath); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if s.FileExists(result.StoragePath) {
		t.Error("файл должен быть удалён")
	}

	err = s.DeleteFile(result.StoragePath)
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("повторное удаление: ошибка = %v, хотели ErrFileNotFound", err)
	}
}

// TestDeleteFile_PermissionDenied проверяет, что ошибка доступа не маскируется под отсутствие файла.
func TestDeleteFile_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("права доступа не проверяются для root и на windows")
	}
	s := newStore(t)

	result, err := s.SaveFile(strings.NewReader("x"), "a.csv", "bob")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	uploads := filepath.Join(s.Root(), UploadsDir)
	if err := os.Chmod(uploads, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(uploads, 0o750) })

	err = s.DeleteFile(result.StoragePath)
	if err == nil {
		t.Fatal("ожидалась ошибка удаления")
	}
	if errors.Is(err, ErrFileNotFound) {
		t.Error("ошибка доступа не должна быть ErrFileNotFound")
	}
}

// TestResolve_RejectsTraversal проверяет отказ для путей вне root.
func TestResolve_RejectsTraversal(t *testing.T) {
	s := newStore(t)

	for _, p := range []string{"../etc/passwd", "/etc/passwd", "uploads/../../x.csv", ""} {
		if _, err := s.Open(p); err == nil || errors.Is(err, ErrFileNotFound) {
			t.Errorf("Open(%q): ожидалась ошибка недопустимого пути, получено %v", p, err)
		}
		if s.FileExists(p) {
			t.Errorf("FileExists(%q) = true", p)
		}
	}
}

func TestGenerateStorageName(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		user     string
		prefix   string
		suffix   string
	}{
		{name: "обычное имя", filename: "data.csv", user: "alice", prefix: "data_alice_", suffix: ".csv"},
		{name: "регистр расширения сохраняется", filename: "Data.XLSX", user: "bob", prefix: "Data_bob_", suffix: ".XLSX"},
		{name: "путь клиента отбрасывается", filename: "../../etc/data.csv", user: "a", prefix: "data_a_", suffix: ".csv"},
		{name: "пустое имя", filename: ".csv", user: "", prefix: "file_file_", suffix: ".csv"},
		{name: "кириллица", filename: "отчёт.csv", user: "иван", prefix: "отчёт_иван_", suffix: ".csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generateStorageName(tt.filename, tt.user)
			if !strings.HasPrefix(got, tt.prefix) || !strings.HasSuffix(got, tt.suffix) {
				t.Errorf("generateStorageName(%q, %q) = %q", tt.filename, tt.user, got)
			}
			if strings.ContainsAny(got, `/\`) {
				t.Errorf("имя содержит разделитель пути: %q", got)
			}
		})
	}

	a := generateStorageName("x.csv", "u")
	b := generateStorageName("x.csv", "u")
	if a == b {
		t.Error("имена должны быть уникальными")
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"hello":        "hello",
		"hello world!": "helloworld",
		"a/b\\c":       "abc",
		"!!!":          "file",
		"data-2024_q1": "data-2024_q1",
	}
	for in, want := range tests {
		if got := sanitize(in); got != want {
			t.Errorf("sanitize(%q) = %q, хотели %q", in, got, want)
		}
	}
}

func TestCheckReady(t *testing.T) {
	s := newStore(t)

	status, _ := s.CheckReady()
	if status != "ok" {
		t.Fatalf("status = %q, ожидался ok", status)
	}
	entries, err := os.ReadDir(filepath.Join(s.Root(), UploadsDir))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("после проверки остались файлы: %d", len(entries))
	}

	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		return
	}
	uploads := filepath.Join(s.Root(), UploadsDir)
	if err := os.Chmod(uploads, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(uploads, 0o750) })

	if status, msg := s.CheckReady(); status != "fail" || msg == "" {
		t.Errorf("CheckReady() = (%q, %q), ожидался fail", status, msg)
	}
}
