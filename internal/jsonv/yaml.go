package jsonv

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrInvalidYAML — входные данные не являются корректным YAML.
var ErrInvalidYAML = errors.New("invalid yaml")

// ParseYAML декодирует YAML-документ в Value.
// Порядок ключей mapping сохраняется. Пустой документ — null.
func ParseYAML(data []byte) (Value, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return FromYAML(&node)
}

// maxYAMLNodes ограничивает размер документа после раскрытия alias'ов.
var maxYAMLNodes = 1_000_000

// FromYAML конвертирует узел yaml.v3 в Value.
// Alias раскрывается копией; alias на собственный предок и документ,
// раскрывающийся больше чем в maxYAMLNodes узлов, отклоняются.
func FromYAML(node *yaml.Node) (Value, error) {
	c := &yamlConverter{expanding: make(map[*yaml.Node]bool)}
	return c.convert(node)
}

type yamlConverter struct {
	// expanding — якоря, которые раскрываются сейчас
	expanding map[*yaml.Node]bool
	nodes     int
}

func (c *yamlConverter) convert(node *yaml.Node) (Value, error) {
	if node == nil {
		return Null(), nil
	}

	c.nodes++
	if c.nodes > maxYAMLNodes {
		return Value{}, fmt.Errorf("%w: document expands to more than %d nodes", ErrInvalidYAML, maxYAMLNodes)
	}

	switch node.Kind {
	case 0:
		return Null(), nil

	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}
		return c.convert(node.Content[0])

	case yaml.AliasNode:
		target := node.Alias
		if c.expanding[target] {
			return Value{}, fmt.Errorf("%w: recursive alias *%s at line %d", ErrInvalidYAML, node.Value, node.Line)
		}
		c.expanding[target] = true
		v, err := c.convert(target)
		delete(c.expanding, target)
		return v, err

	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := c.convert(child)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Array(items...), nil

	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(node.Content); i += 2 {
			item, err := c.convert(node.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			obj.Set(node.Content[i].Value, item)
		}
		return Obj(obj), nil

	case yaml.ScalarNode:
		return scalarFromYAML(node)
	}

	return Value{}, fmt.Errorf("%w: unsupported node kind %d at line %d", ErrInvalidYAML, node.Kind, node.Line)
}

// scalarFromYAML конвертирует скаляр по его разрешённому тегу.
func scalarFromYAML(node *yaml.Node) (Value, error) {
	switch node.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("%w: line %d: %v", ErrInvalidYAML, node.Line, err)
		}
		return Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("%w: line %d: %v", ErrInvalidYAML, node.Line, err)
		}
		return Number(f), nil
	default:
		return String(node.Value), nil
	}
}
