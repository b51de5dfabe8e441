package shotxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/net/html/charset"

	"github.com/excrawl/excrawl/internal/domain"
)

// DocExt 是 shot 描述文档的扩展名。
const DocExt = ".xml"

// ObjectTag 是 Object 节点的标签名（大小写敏感）。
const ObjectTag = "Object"

// Element 是通用的 XML 元素树节点（只保留标签、属性与子元素）。
type Element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []Element  `xml:",any"`
}

// Attr 返回本地名为 name 的属性值；ok=false 表示属性不存在。
func (e Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Document 是解析后的 shot 描述文档。
type Document struct {
	Root Element
}

// Objects 按文档顺序返回所有标签为 Object 的元素（任意深度）。
func (d *Document) Objects() []Element {
	if d == nil {
		return nil
	}
	out := make([]Element, 0, 16)
	var walk func(e Element)
	walk = func(e Element) {
		if e.XMLName.Local == ObjectTag {
			out = append(out, e)
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(d.Root)
	return out
}

// ParseError 表示某个 shot 的描述文档无法读取或不是合法 XML。
// 该 shot 贡献 0 条记录，crawl 继续。
type ParseError struct {
	Shot domain.ShotID
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("shot %s 描述文档 %q 解析失败：%v", e.Shot, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Path 返回 shot 描述文档的约定路径：<showRoot>/<show>/<shot>/<shot>.xml。
func Path(showRoot, show string, shot domain.ShotID) string {
	s := string(shot)
	return filepath.Join(showRoot, show, s, s+DocExt)
}

// Load 读取并解析一个 shot 的描述文档。失败一律返回 *ParseError。
func Load(showRoot, show string, shot domain.ShotID) (*Document, error) {
	path := Path(showRoot, show, shot)
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Shot: shot, Path: path, Err: err}
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, &ParseError{Shot: shot, Path: path, Err: err}
	}
	return doc, nil
}

// ErrTrailingContent 表示根元素之后还有元素或文本（文档不完整或被拼接）。
var ErrTrailingContent = errors.New("根元素之后存在多余内容")

// Parse 从 r 解析出元素树。除“是合法 XML”之外不做任何 schema 校验。
//
// 声明了非 UTF-8 编码（如 ISO-8859-1）的文档按声明转码；
// 根元素之后只允许空白、注释和处理指令。
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var root Element
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return nil, fmt.Errorf("%w：%q", ErrTrailingContent, bytes.TrimSpace(t))
			}
		default:
			return nil, ErrTrailingContent
		}
	}
	return &Document{Root: root}, nil
}
