package renderer

import "fmt"

// Op identifies a printer command
type Op string

const (
	OpAlign    Op = "align"
	OpBold     Op = "bold"
	OpTextSize Op = "text_size"
	OpPrintln  Op = "println"
	OpDrawLine Op = "draw_line"
	OpTableRow Op = "table_row"
	OpPrintQR  Op = "print_qr"
	OpCut      Op = "cut"
)

// Align is a horizontal text alignment
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Column is one cell of a table row. Width is a fraction of the printable width.
type Column struct {
	Text  string  `json:"text"`
	Align Align   `json:"align"`
	Width float64 `json:"width"`
}

// Command is a single device-independent printer instruction.
// Only the fields relevant to Op are set.
type Command struct {
	Op      Op       `json:"op"`
	Align   Align    `json:"align,omitempty"`
	Bold    bool     `json:"bold,omitempty"`
	Width   int      `json:"width,omitempty"`
	Height  int      `json:"height,omitempty"`
	Text    string   `json:"text,omitempty"`
	Columns []Column `json:"columns,omitempty"`
	QRData  string   `json:"qr_data,omitempty"`
	QRCell  int      `json:"qr_cell,omitempty"`
}

func (c Command) String() string {
	switch c.Op {
	case OpAlign:
		return fmt.Sprintf("align(%s)", c.Align)
	case OpBold:
		return fmt.Sprintf("bold(%t)", c.Bold)
	case OpTextSize:
		return fmt.Sprintf("text_size(%d,%d)", c.Width, c.Height)
	case OpPrintln:
		return fmt.Sprintf("println(%q)", c.Text)
	case OpTableRow:
		return fmt.Sprintf("table_row(%d cols)", len(c.Columns))
	case OpPrintQR:
		return fmt.Sprintf("print_qr(%q,%d)", c.QRData, c.QRCell)
	default:
		return string(c.Op)
	}
}

// Sequence is an ordered, immutable list of commands
type Sequence struct {
	cmds []Command
}

// NewSequence copies cmds into a new Sequence
func NewSequence(cmds ...Command) Sequence {
	out := make([]Command, len(cmds))
	for i, c := range cmds {
		out[i] = c.clone()
	}
	return Sequence{cmds: out}
}

// Len returns the number of commands
func (s Sequence) Len() int {
	return len(s.cmds)
}

// At returns a copy of the i-th command
func (s Sequence) At(i int) Command {
	return s.cmds[i].clone()
}

// Commands returns a copy of the command list
func (s Sequence) Commands() []Command {
	out := make([]Command, len(s.cmds))
	for i, c := range s.cmds {
		out[i] = c.clone()
	}
	return out
}

// Count returns how many commands have the given op
func (s Sequence) Count(op Op) int {
	n := 0
	for _, c := range s.cmds {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (c Command) clone() Command {
	if c.Columns != nil {
		cols := make([]Column, len(c.Columns))
		copy(cols, c.Columns)
		c.Columns = cols
	}
	return c
}

// builder accumulates commands for a Sequence
type builder struct {
	cmds []Command
}

func (b *builder) align(a Align) {
	b.cmds = append(b.cmds, Command{Op: OpAlign, Align: a})
}

func (b *builder) bold(on bool) {
	b.cmds = append(b.cmds, Command{Op: OpBold, Bold: on})
}

func (b *builder) textSize(w, h int) {
	b.cmds = append(b.cmds, Command{Op: OpTextSize, Width: w, Height: h})
}

func (b *builder) println(text string) {
	b.cmds = append(b.cmds, Command{Op: OpPrintln, Text: text})
}

func (b *builder) drawLine() {
	b.cmds = append(b.cmds, Command{Op: OpDrawLine})
}

func (b *builder) tableRow(cols ...Column) {
	b.cmds = append(b.cmds, Command{Op: OpTableRow, Columns: cols})
}

func (b *builder) printQR(data string, cell int) {
	b.cmds = append(b.cmds, Command{Op: OpPrintQR, QRData: data, QRCell: cell})
}

func (b *builder) cut() {
	b.cmds = append(b.cmds, Command{Op: OpCut})
}

func (b *builder) sequence() Sequence {
	return Sequence{cmds: b.cmds}
}
