// Package labelimg reads the per image Pascal VOC XML files written by the labelImg tool.
//
// Elements are addressed by position, as labelImg writes them: the first two children of
// <size> are width and height, the first child of <object> is the label and its fifth
// child is the box, holding xmin, ymin, xmax, ymax in that order.
package labelimg

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v6"

	"github.com/lewtec/boxlabeler/internal/domain"
)

// Object is one labeled box.
type Object struct {
	Label                  string
	XMin, YMin, XMax, YMax int
}

// File is the content of one labelImg XML file.
type File struct {
	ImageID  domain.ImageID
	Filename string
	Width    int
	Height   int
	Objects  []Object
}

type node struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
	Nodes   []node `xml:",any"`
}

func (n *node) child(name string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}
	return nil
}

func (n *node) at(i int) (*node, error) {
	if i >= len(n.Nodes) {
		return nil, fmt.Errorf("%w: <%s> has %d children, need at least %d", domain.ErrParse, n.XMLName.Local, len(n.Nodes), i+1)
	}
	return &n.Nodes[i], nil
}

func (n *node) number() (int, error) {
	s := strings.TrimSpace(n.Text)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: <%s> is not a number: %q", domain.ErrParse, n.XMLName.Local, s)
	}
	return int(math.Round(f)), nil
}

// Parse decodes one labelImg document.
func Parse(r io.Reader) (*File, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	filename := root.child("filename")
	if filename == nil {
		return nil, fmt.Errorf("%w: missing <filename>", domain.ErrParse)
	}
	out := &File{
		Filename: strings.TrimSpace(filename.Text),
		Objects:  []Object{},
	}
	out.ImageID = domain.StemOf(out.Filename)

	size := root.child("size")
	if size == nil {
		return nil, fmt.Errorf("%w: missing <size>", domain.ErrParse)
	}
	var err error
	if out.Width, err = intAt(size, 0); err != nil {
		return nil, err
	}
	if out.Height, err = intAt(size, 1); err != nil {
		return nil, err
	}

	for i := range root.Nodes {
		obj := &root.Nodes[i]
		if obj.XMLName.Local != "object" {
			continue
		}
		parsed, err := parseObject(obj)
		if err != nil {
			return nil, fmt.Errorf("while reading object %d: %w", len(out.Objects), err)
		}
		out.Objects = append(out.Objects, parsed)
	}
	return out, nil
}

func intAt(n *node, i int) (int, error) {
	c, err := n.at(i)
	if err != nil {
		return 0, err
	}
	return c.number()
}

func parseObject(obj *node) (Object, error) {
	label, err := obj.at(0)
	if err != nil {
		return Object{}, err
	}
	box, err := obj.at(4)
	if err != nil {
		return Object{}, err
	}
	var coords [4]int
	for i := range coords {
		if coords[i], err = intAt(box, i); err != nil {
			return Object{}, err
		}
	}
	return Object{
		Label: strings.TrimSpace(label.Text),
		XMin:  coords[0],
		YMin:  coords[1],
		XMax:  coords[2],
		YMax:  coords[3],
	}, nil
}

// ParseFile opens path on fs and parses it.
func ParseFile(fs billy.Filesystem, path string) (*File, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("while parsing %s: %w", path, err)
	}
	return parsed, nil
}

// Annotation converts the file into an Annotation whose boxes are authored by author and
// indexed in document order. origin is recorded as the origin filename.
func (f *File) Annotation(origin string, author domain.UserID) *domain.Annotation {
	a := domain.NewAnnotation(f.ImageID, f.Width, f.Height)
	a.OriginFilename = origin
	for i, obj := range f.Objects {
		a.Boxes = append(a.Boxes, domain.NewBoundingBox(domain.BoxParams{
			XMin:    float64(obj.XMin),
			YMin:    float64(obj.YMin),
			XMax:    float64(obj.XMax),
			YMax:    float64(obj.YMax),
			Label:   obj.Label,
			ImageID: f.ImageID,
			Index:   i,
			Author:  author,
		}))
	}
	return a
}
