// Renders pages as markdown files with YAML front matter.

package filegw

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"gopkg.in/yaml.v3"

	"github.com/maruel/pagetree/internal/blocktree"
	"github.com/maruel/pagetree/internal/model"
)

// FrontMatter is the header of a rendered page.
type FrontMatter struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	ParentID string `yaml:"parent_id,omitempty"`
	Icon     string `yaml:"icon,omitempty"`
	Database bool   `yaml:"database,omitempty"`
	Archived bool   `yaml:"archived,omitempty"`
	Created  string `yaml:"created"`
	Modified string `yaml:"modified"`
}

var errNoFrontMatter = errors.New("missing front matter")

// RenderPage returns the markdown file of a page: YAML front matter followed
// by the content converted from the blocks' HTML.
func RenderPage(p *model.Page, blocks []*model.FlatBlock) ([]byte, error) {
	fm := FrontMatter{
		ID:       p.ID,
		Title:    p.Title,
		ParentID: p.ParentID,
		Icon:     p.Icon,
		Database: p.IsDatabase,
		Archived: p.IsArchived,
		Created:  p.CreatedAt.UTC().Format(time.RFC3339),
		Modified: p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	header, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n\n")
	if len(blocks) != 0 {
		f := blocktree.FromFlat(p.ID, blocks)
		md, err := htmltomarkdown.ConvertString(blocksHTML(f.Blocks()))
		if err != nil {
			return nil, fmt.Errorf("failed to convert HTML to markdown: %w", err)
		}
		buf.WriteString(strings.TrimSpace(md))
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// ParseFrontMatter splits a rendered page into its header and its markdown
// body.
func ParseFrontMatter(data []byte) (*FrontMatter, string, error) {
	content := string(data)
	if !strings.HasPrefix(content, "---\n") {
		return nil, "", errNoFrontMatter
	}
	header, body, ok := strings.Cut(content[4:], "\n---\n")
	if !ok {
		return nil, "", errNoFrontMatter
	}
	fm := &FrontMatter{}
	if err := yaml.Unmarshal([]byte(header), fm); err != nil {
		return nil, "", fmt.Errorf("invalid front matter: %w", err)
	}
	return fm, strings.TrimLeft(body, "\n"), nil
}

// blocksHTML renders a block forest as an HTML fragment. Block content is
// already HTML; other payloads are escaped.
func blocksHTML(blocks []*model.Block) string {
	var b strings.Builder
	writeBlocks(&b, blocks)
	return b.String()
}

func writeBlocks(b *strings.Builder, blocks []*model.Block) {
	for i := 0; i < len(blocks); i++ {
		blk := blocks[i]
		if list := listTag(blk.Type); list != "" {
			// Consecutive list items share one list element.
			b.WriteString("<" + list + ">")
			for ; i < len(blocks) && listTag(blocks[i].Type) == list; i++ {
				b.WriteString("<li>")
				b.WriteString(blocks[i].Content)
				writeBlocks(b, blocks[i].Children)
				b.WriteString("</li>")
			}
			i--
			b.WriteString("</" + list + ">")
			continue
		}
		writeBlock(b, blk)
	}
}

func writeBlock(b *strings.Builder, blk *model.Block) {
	switch blk.Type {
	case model.BlockTypeHeading1:
		b.WriteString("<h1>" + blk.Content + "</h1>")
	case model.BlockTypeHeading2:
		b.WriteString("<h2>" + blk.Content + "</h2>")
	case model.BlockTypeHeading3:
		b.WriteString("<h3>" + blk.Content + "</h3>")
	case model.BlockTypeQuote, model.BlockTypeCallout:
		b.WriteString("<blockquote>" + blk.Content)
		writeBlocks(b, blk.Children)
		b.WriteString("</blockquote>")
		return
	case model.BlockTypeCode:
		b.WriteString("<pre><code")
		if lang, _ := blk.Properties["language"].(string); lang != "" {
			b.WriteString(` class="language-` + html.EscapeString(lang) + `"`)
		}
		b.WriteString(">" + html.EscapeString(blk.Content) + "</code></pre>")
	case model.BlockTypeDivider:
		b.WriteString("<hr>")
	case model.BlockTypeImage:
		b.WriteString(`<p><img src="` + html.EscapeString(blk.Content) + `"></p>`)
	case model.BlockTypeEmbed:
		u := html.EscapeString(blk.Content)
		b.WriteString(`<p><a href="` + u + `">` + u + `</a></p>`)
	case model.BlockTypeTodo:
		box := "[ ] "
		if checked, _ := blk.Properties["checked"].(bool); checked {
			box = "[x] "
		}
		b.WriteString("<p>" + box + blk.Content + "</p>")
	default:
		b.WriteString("<p>" + blk.Content + "</p>")
	}
	if len(blk.Children) != 0 {
		b.WriteString("<div>")
		writeBlocks(b, blk.Children)
		b.WriteString("</div>")
	}
}

func listTag(t model.BlockType) string {
	switch t {
	case model.BlockTypeBulletedList:
		return "ul"
	case model.BlockTypeNumberedList:
		return "ol"
	}
	return ""
}
