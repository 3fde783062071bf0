package chart

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Fixed steps of the story structure.
const (
	NodeSetting              = "setting"
	NodeProtagonist          = "the_protagonist"
	NodeJourney              = "journey"
	NodeQuestGiver           = "quest-giver"
	NodeConflict             = "conflict"
	NodeRestoreBalance       = "restore_balance"
	NodeRestorationCommunity = "restoration_community"
	NodeRestorationPersonal  = "restoration_personal"
	NodeVillageFuture        = "village_future"
)

var fixedLabels = map[string]string{
	NodeSetting:              "In a small village by\nthe fjord/mountain",
	NodeProtagonist:          "the protagonist",
	NodeJourney:              "explores the forest and",
	NodeQuestGiver:           "finds its guardian spirit in",
	NodeConflict:             "The guardian warns of\nconflict between nature and",
	NodeRestoreBalance:       "Must restore balance by",
	NodeRestorationCommunity: "Organising community",
	NodeRestorationPersonal:  "Coming to terms with self",
	NodeVillageFuture:        "Village becomes a beacon\nof eco-sustainability/unity/courage",
}

// StoryStructure lists the variants observed at each branching step of the stories.
type StoryStructure struct {
	Protagonists        []string
	InstigatingEvents   []string
	QuestGiverLocations []string
	Opponents           []string
}

// NorwegianStructure is the structure coded from the Norwegian stories.
func NorwegianStructure() StoryStructure {
	return StoryStructure{
		Protagonists:        []string{"Freya", "Astrid", "Ingrid", "Elin"},
		InstigatingEvents:   []string{"returns home \nfrom Oslo and", "is an adventurous\nlocal girl who"},
		QuestGiverLocations: []string{"a clearing in\nthe forest", "a rune-carved box", "an ancient tree"},
		Opponents:           []string{"people", "darkness", "extreme weather", "outsiders", "developers"},
	}
}

// Node is one box of the flowchart, placed at (X, Y).
type Node struct {
	id    int64
	Name  string
	Label string
	X, Y  float64
}

func (n *Node) ID() int64 { return n.id }

func (n *Node) DOTID() string { return n.Name }

func (n *Node) Attributes() []encoding.Attribute {
	return []encoding.Attribute{
		{Key: "label", Value: strconv.Quote(n.Label)},
		{Key: "pos", Value: strconv.Quote(fmt.Sprintf("%g,%g!", n.X, n.Y))},
	}
}

// Edge is a directed link between two named nodes.
type Edge struct {
	Source string
	Target string
}

// Flowchart is the laid-out story structure graph. Edges keep insertion order.
type Flowchart struct {
	Graph *simple.DirectedGraph
	Nodes map[string]*Node
	Edges []Edge
	order []string
}

// BuildFlowchart lays the structure out top to bottom: each list of variants is spread evenly around
// x=0 on its own row, between the fixed steps it connects.
func BuildFlowchart(s StoryStructure) (*Flowchart, error) {
	for name, list := range map[string][]string{
		"protagonists":          s.Protagonists,
		"instigating events":    s.InstigatingEvents,
		"quest-giver locations": s.QuestGiverLocations,
		"opponents":             s.Opponents,
	} {
		if len(list) == 0 {
			return nil, fmt.Errorf("flowchart: no %s", name)
		}
	}

	fc := &Flowchart{Graph: simple.NewDirectedGraph(), Nodes: map[string]*Node{}}
	fixed := []struct {
		name string
		y    float64
	}{
		{NodeSetting, 0},
		{NodeProtagonist, -1.5},
		{NodeJourney, -3.2},
		{NodeQuestGiver, -4.2},
		{NodeConflict, -6.2},
		{NodeRestoreBalance, -8.2},
		{NodeVillageFuture, -11},
	}
	for _, f := range fixed {
		if err := fc.addNode(f.name, fixedLabels[f.name], 0, f.y); err != nil {
			return nil, err
		}
	}

	if err := fc.spread(NodeSetting, s.Protagonists, -0.5, 1.5); err != nil {
		return nil, err
	}
	fc.joinAll(s.Protagonists, NodeProtagonist)

	if err := fc.spread(NodeProtagonist, s.InstigatingEvents, -2.5, 2); err != nil {
		return nil, err
	}
	fc.joinAll(s.InstigatingEvents, NodeJourney)

	fc.addEdge(NodeJourney, NodeQuestGiver)

	if err := fc.spread(NodeQuestGiver, s.QuestGiverLocations, -5, 1.5); err != nil {
		return nil, err
	}
	fc.joinAll(s.QuestGiverLocations, NodeConflict)
	fc.addEdge(NodeQuestGiver, NodeConflict)

	if err := fc.spread(NodeConflict, s.Opponents, -7, 1.5); err != nil {
		return nil, err
	}
	fc.joinAll(s.Opponents, NodeRestoreBalance)

	restorations := []string{NodeRestorationCommunity, NodeRestorationPersonal}
	if err := fc.spread(NodeRestoreBalance, restorations, -9, 2); err != nil {
		return nil, err
	}
	fc.joinAll(restorations, NodeVillageFuture)

	return fc, nil
}

// SpreadX returns n x positions spaced evenly around center.
func SpreadX(n int, center, spacing float64) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = center + spacing*(float64(i)-float64(n-1)/2)
	}
	return xs
}

func (fc *Flowchart) addNode(name, label string, x, y float64) error {
	if _, ok := fc.Nodes[name]; ok {
		return fmt.Errorf("flowchart: duplicate node %q", name)
	}
	n := &Node{id: int64(len(fc.order)), Name: name, Label: label, X: x, Y: y}
	fc.Graph.AddNode(n)
	fc.Nodes[name] = n
	fc.order = append(fc.order, name)
	return nil
}

func (fc *Flowchart) addEdge(from, to string) {
	f, t := fc.Nodes[from], fc.Nodes[to]
	if fc.Graph.HasEdgeFromTo(f.ID(), t.ID()) {
		return
	}
	fc.Graph.SetEdge(fc.Graph.NewEdge(f, t))
	fc.Edges = append(fc.Edges, Edge{Source: from, Target: to})
}

func (fc *Flowchart) spread(parent string, children []string, y, spacing float64) error {
	xs := SpreadX(len(children), 0, spacing)
	for i, child := range children {
		label, ok := fixedLabels[child]
		if !ok {
			label = child
		}
		if err := fc.addNode(child, label, xs[i], y); err != nil {
			return err
		}
		fc.addEdge(parent, child)
	}
	return nil
}

func (fc *Flowchart) joinAll(from []string, to string) {
	for _, f := range from {
		fc.addEdge(f, to)
	}
}

// NodeNames returns node names in insertion order.
func (fc *Flowchart) NodeNames() []string {
	return append([]string(nil), fc.order...)
}

// DOT encodes the graph in Graphviz format with labels and fixed positions.
func (fc *Flowchart) DOT() ([]byte, error) {
	return dot.Marshal(fc.Graph, "story_flowchart", "", "  ")
}

// WriteEdgesXLSX writes the edge list as a Source/Target sheet.
func (fc *Flowchart) WriteEdgesXLSX(path string) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	const sheet = "Sheet1"
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Source", "Target"}); err != nil {
		return err
	}
	for i, e := range fc.Edges {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &[]any{e.Source, e.Target}); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// ReadEdgesXLSX reads an edge list written by WriteEdgesXLSX.
func ReadEdgesXLSX(path string) ([]Edge, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) < 2 || rows[0][0] != "Source" || rows[0][1] != "Target" {
		return nil, errors.New("edge sheet: missing Source/Target header")
	}
	out := make([]Edge, 0, len(rows)-1)
	for _, r := range rows[1:] {
		if len(r) < 2 {
			continue
		}
		out = append(out, Edge{Source: r[0], Target: r[1]})
	}
	return out, nil
}

var (
	nodeColor = color.RGBA{R: 173, G: 216, B: 230, A: 255}
	edgeColor = color.Gray{Y: 150}
)

// Plot draws edges as gray lines under light blue node markers with their labels.
func (fc *Flowchart) Plot(title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.HideAxes()

	for _, e := range fc.Edges {
		a, b := fc.Nodes[e.Source], fc.Nodes[e.Target]
		line, err := plotter.NewLine(plotter.XYs{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}})
		if err != nil {
			return nil, err
		}
		line.Color = edgeColor
		p.Add(line)
	}

	names := fc.NodeNames()
	pts := make(plotter.XYs, 0, len(names))
	labels := make([]string, 0, len(names))
	for _, name := range names {
		n := fc.Nodes[name]
		pts = append(pts, plotter.XY{X: n.X, Y: n.Y})
		labels = append(labels, n.Label)
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	sc.GlyphStyle.Radius = vg.Points(22)
	sc.GlyphStyle.Color = nodeColor
	p.Add(sc)

	lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
	if err != nil {
		return nil, err
	}
	for i := range lbl.TextStyle {
		lbl.TextStyle[i].XAlign = text.XCenter
		lbl.TextStyle[i].YAlign = text.YCenter
		lbl.TextStyle[i].Font.Size = vg.Points(9)
	}
	p.Add(lbl)

	minX, maxX := 0.0, 0.0
	for _, pt := range pts {
		minX = min(minX, pt.X)
		maxX = max(maxX, pt.X)
	}
	p.X.Min, p.X.Max = minX-1.5, maxX+1.5
	p.Y.Min, p.Y.Max = -11.8, 0.8
	return p, nil
}

// SavePlot renders the chart to path (format by extension).
func (fc *Flowchart) SavePlot(path, title string) error {
	p, err := fc.Plot(title)
	if err != nil {
		return err
	}
	if err := p.Save(10*vg.Inch, 12*vg.Inch, path); err != nil {
		return fmt.Errorf("save flowchart %s: %w", path, err)
	}
	return nil
}

func (s StoryStructure) NodeCount() int {
	return len(fixedLabels) + len(s.Protagonists) + len(s.InstigatingEvents) + len(s.QuestGiverLocations) + len(s.Opponents)
}

// EdgeCount counts one edge into and one out of every variant, plus the six links between fixed steps.
func (s StoryStructure) EdgeCount() int {
	return 2*(len(s.Protagonists)+len(s.InstigatingEvents)+len(s.QuestGiverLocations)+len(s.Opponents)) + 6
}

// FlowchartTitle is the default plot title.
const FlowchartTitle = "Story Flowchart"

var _ graph.Node = (*Node)(nil)
