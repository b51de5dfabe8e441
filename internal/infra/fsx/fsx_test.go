package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic_CreatesDirAndNoTempLeft(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path := filepath.Join(dir, "report.json")

	if err := WriteFileAtomic(path, []byte("v1")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteFileAtomic(path, []byte("v2")); err != nil {
		t.Fatalf("覆盖写入不期望错误：%v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "v2" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	assertNoTemp(t, dir, "report.json")
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	if err := WriteFileAtomic(filepath.Join(dir, "a.html"), []byte("x")); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.html")); !os.IsNotExist(err) {
		t.Fatalf("不应写出最终文件：err=%v", err)
	}
	assertNoTemp(t, dir, "a.html")
}

func assertNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}
