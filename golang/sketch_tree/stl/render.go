package stl

import (
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/pkg/errors"
)

// GraphFormats maps figure types accepted by RenderFile to graphviz formats.
var GraphFormats = map[string]graphviz.Format{
	"png": graphviz.PNG,
	"svg": graphviz.SVG,
	"jpg": graphviz.JPG,
	"dot": graphviz.XDOT,
}

// nodeDescription returns the label of a record for rendering
func (tree *FlatTree) nodeDescription(ind int, featureNames []string) string {
	node := tree.Index[ind]
	var sb strings.Builder
	if node.IsLeaf {
		sb.WriteString(fmt.Sprintln("leaf:", node.LeafIndex))
		sb.WriteString(fmt.Sprintf("%6.4f\n", tree.Values[ind]))
		sb.WriteString(fmt.Sprint("# ", node.Count))
		return sb.String()
	}
	sb.WriteString(fmt.Sprintln("#", node.Count))
	missing := "R"
	if node.MissingLeft {
		missing = "L"
	}
	sb.WriteString(fmt.Sprintln("nan:", missing))
	sb.WriteString(fmt.Sprintf("%s < %6.5f", FeatureName(featureNames, node.Feature), tree.Values[ind]))
	return sb.String()
}

func (tree *FlatTree) recurrentDraw(g *cgraph.Graph, ind int, parentNode *cgraph.Node, featureNames []string) error {
	currentNode, err := g.CreateNode(fmt.Sprint(ind))
	if err != nil {
		return errors.Wrapf(err, "create graph node %d", ind)
	}
	if parentNode != nil {
		if _, err := g.CreateEdge("", parentNode, currentNode); err != nil {
			return errors.Wrapf(err, "create graph edge to %d", ind)
		}
	}

	currentNode.Set("label", tree.nodeDescription(ind, featureNames))
	node := tree.Index[ind]
	if node.IsLeaf {
		currentNode.Set("shape", "box")
		return nil
	}
	if err := tree.recurrentDraw(g, node.Left, currentNode, featureNames); err != nil {
		return err
	}
	return tree.recurrentDraw(g, node.Right, currentNode, featureNames)
}

// DrawGraph builds a graphviz graph of the tree. The caller closes both values.
func (tree *FlatTree) DrawGraph(featureNames []string) (*graphviz.Graphviz, *cgraph.Graph, error) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		graphViz.Close()
		return nil, nil, errors.Wrap(err, "create graph")
	}
	if err := tree.recurrentDraw(graph, 0, nil, featureNames); err != nil {
		graph.Close()
		graphViz.Close()
		return nil, nil, err
	}
	return graphViz, graph, nil
}

// RenderFile draws the tree into a file of the given figure type.
func (tree *FlatTree) RenderFile(featureNames []string, figureType, fileName string) error {
	format, ok := GraphFormats[figureType]
	if !ok {
		return errors.Errorf("unknown figure type %q", figureType)
	}
	graphViz, graph, err := tree.DrawGraph(featureNames)
	if err != nil {
		return err
	}
	defer graphViz.Close()
	defer graph.Close()
	return errors.Wrapf(graphViz.RenderFilename(graph, format, fileName), "render %s", fileName)
}
