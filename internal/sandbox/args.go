package sandbox

import (
	"fmt"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// ArgList is a list of extra command line arguments. In YAML it may be a
// sequence or a single shell-quoted string.
type ArgList []string

// ParseArgList splits a shell-quoted string into arguments.
func ParseArgList(s string) (ArgList, error) {
	parts, err := shlex.Split(s)
	if err != nil {
		return nil, fmt.Errorf("parse args %q: %w", s, err)
	}
	return ArgList(parts), nil
}

func (a *ArgList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		parsed, err := ParseArgList(node.Value)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*a = list
		return nil
	default:
		return fmt.Errorf("line %d: extra args must be a string or a list", node.Line)
	}
}
