package fsx

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 rename 失败。
var renameFunc = os.Rename

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘 rename 失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// WriteFileAtomic 原子写入 path（同目录临时文件 + rename），已存在则覆盖。
// report.json / report.html 都经由这里落盘，读者永远看不到写了一半的报告。
func WriteFileAtomic(path string, data []byte) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	name := filepath.Base(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := renameFunc(tmpName, path); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: tmpName, Dst: path, Err: err}
		}
		return err
	}

	// 目录 fsync：best-effort。
	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
