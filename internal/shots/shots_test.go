package shots

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/excrawl/excrawl/internal/domain"
)

func TestList_AllWithExclude(t *testing.T) {
	root := t.TempDir()
	mkShots(t, root, "demo", "shotA", "shotB", "system_test")

	got, err := List(root, "demo", []string{"ALL"}, []string{"system"}, "shot001")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []domain.ShotID{"shotA", "shotB"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestList_EmptyIncludeMeansDefaultShot(t *testing.T) {
	root := t.TempDir()
	mkShots(t, root, "demo", "shotA", "shotB")

	got, err := List(root, "demo", nil, []string{"system"}, "shotB")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !reflect.DeepEqual(got, []domain.ShotID{"shotB"}) {
		t.Fatalf("include 为空时只应返回 defaultShot：%v", got)
	}

	// 单 shot 模式下 exclude 依然生效。
	got, err = List(root, "demo", nil, []string{"shot"}, "shotB")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 0 {
		t.Fatalf("defaultShot 被 exclude 命中时应为空：%v", got)
	}
}

func TestList_SubstringIncludeAndNoneSentinel(t *testing.T) {
	root := t.TempDir()
	mkShots(t, root, "demo", "sq010_0010", "sq010_0020", "sq020_0010", "system")

	got, err := List(root, "demo", []string{"sq010 system"}, []string{"NONE"}, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []domain.ShotID{"sq010_0010", "sq010_0020", "system"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestList_ExcludeWinsOverInclude(t *testing.T) {
	root := t.TempDir()
	mkShots(t, root, "demo", "shotA", "shotA_old")

	got, err := List(root, "demo", []string{"shotA"}, []string{"old"}, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !reflect.DeepEqual(got, []domain.ShotID{"shotA"}) {
		t.Fatalf("exclude 必须在 include 之后生效：%v", got)
	}
}

func TestList_AllIsSupersetOfExplicitPatterns(t *testing.T) {
	root := t.TempDir()
	mkShots(t, root, "demo", "a1", "a2", "b1", "c_system")
	exclude := []string{"system"}

	all, err := List(root, "demo", []string{"all"}, exclude, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	for _, inc := range [][]string{{"a"}, {"b", "c"}, {"1"}, {"zzz"}} {
		sub, err := List(root, "demo", inc, exclude, "")
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		set := map[domain.ShotID]bool{}
		for _, s := range all {
			set[s] = true
		}
		for _, s := range sub {
			if !set[s] {
				t.Fatalf("include=%v 的结果 %q 不在 all 的结果中：%v", inc, s, all)
			}
		}
	}
}

func TestList_MissingShowDir_DiscoveryError(t *testing.T) {
	root := t.TempDir()

	got, err := List(root, "nope", []string{"all"}, nil, "shot001")
	if err == nil {
		t.Fatalf("期望 DiscoveryError，但得到 nil")
	}
	var de *DiscoveryError
	if !errors.As(err, &de) {
		t.Fatalf("期望 *DiscoveryError，实际：%T %v", err, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("DiscoveryError 应保留底层错误：%v", err)
	}
	if len(got) != 0 {
		t.Fatalf("失败时应返回空集合：%v", got)
	}
}

func mkShots(t *testing.T, root, show string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.MkdirAll(filepath.Join(root, show, n), 0o755); err != nil {
			t.Fatalf("创建目录失败：%v", err)
		}
	}
}
