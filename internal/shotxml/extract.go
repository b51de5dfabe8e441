package shotxml

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/excrawl/excrawl/internal/domain"
)

// Object 子节点上的属性名。
const (
	AttrName       = "name"
	AttrShotVer    = "shotVer"
	AttrObjName    = "objName"
	AttrObjHighest = "objHighest"
	AttrObjVer     = "objVer"
	AttrMediaFile  = "mb"
)

var (
	ErrNoChild     = errors.New("缺少属性子节点")
	ErrMissingAttr = errors.New("缺少必填属性")
	ErrNegativeVer = errors.New("版本号不能为负")
)

const unnamedObject = "<unnamed>"

// ExtractionError 表示单个 Object 节点无法转换为记录。
// 只影响该节点本身：调用方计数并以 debug 级别记录，兄弟节点照常处理。
type ExtractionError struct {
	Object string
	Field  string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("object %s 无效：%v", e.Object, e.Err)
	}
	return fmt.Sprintf("object %s 字段 %s 无效：%v", e.Object, e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extract 把一个 Object 元素转换为 ObjectRecord（纯函数，与调度方式无关）。
//
// 规则：
// - 节点自身必须有 name
// - 第一个子元素必须带 shotVer/objName/objHighest/objVer/mb
// - 版本字段必须是非负整数；不合法即整条丢弃，不回退为 0
func Extract(el Element) (domain.ObjectRecord, error) {
	name, ok := el.Attr(AttrName)
	if !ok {
		return domain.ObjectRecord{}, &ExtractionError{Object: unnamedObject, Field: AttrName, Err: ErrMissingAttr}
	}
	if len(el.Children) == 0 {
		return domain.ObjectRecord{}, &ExtractionError{Object: name, Err: ErrNoChild}
	}
	attrs := el.Children[0]

	str := func(field string) (string, error) {
		v, ok := attrs.Attr(field)
		if !ok {
			return "", &ExtractionError{Object: name, Field: field, Err: ErrMissingAttr}
		}
		return v, nil
	}
	num := func(field string) (int, error) {
		v, err := str(field)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, &ExtractionError{Object: name, Field: field, Err: err}
		}
		if n < 0 {
			return 0, &ExtractionError{Object: name, Field: field, Err: ErrNegativeVer}
		}
		return n, nil
	}

	shotVer, err := num(AttrShotVer)
	if err != nil {
		return domain.ObjectRecord{}, err
	}
	objName, err := str(AttrObjName)
	if err != nil {
		return domain.ObjectRecord{}, err
	}
	objHighest, err := num(AttrObjHighest)
	if err != nil {
		return domain.ObjectRecord{}, err
	}
	objVer, err := num(AttrObjVer)
	if err != nil {
		return domain.ObjectRecord{}, err
	}
	mb, err := str(AttrMediaFile)
	if err != nil {
		return domain.ObjectRecord{}, err
	}

	return domain.ObjectRecord{
		Name:                 name,
		ShotVersion:          shotVer,
		ObjectName:           objName,
		ObjectVersion:        objVer,
		ObjectHighestVersion: objHighest,
		MediaFile:            mb,
	}, nil
}
