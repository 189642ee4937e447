package stored_config

import (
	"fmt"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/directive_registry"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/violation_report"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	"gopkg.in/yaml.v3"
)

func scalarNode(tag string, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// Example renders a starter configuration with a suggested value for every
// directive. Nothing is deployed by it.
func Example() ([]byte, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, comment string, value *yaml.Node) {
		keyNode := scalarNode("!!str", key)
		keyNode.HeadComment = comment
		mapping.Content = append(mapping.Content, keyNode, value)
	}

	for _, name := range directive_registry.List() {
		add(directive_registry.StorageKey(name), string(name), scalarNode("!!str", directive_registry.Example(name)))
	}

	otherNode := scalarNode("!!str", "upgrade-insecure-requests\n")
	otherNode.Style = yaml.LiteralStyle
	add(directive_registry.OtherStorageKey, "Other directives, one per line.", otherNode)

	add(KeyDeploy, "Send the policy to everyone.", scalarNode("!!bool", "false"))
	add(KeyDebug, "Send the policy to everyone and log violation reports.", scalarNode("!!bool", "false"))
	add(KeyReport, "Collect violation reports.", scalarNode("!!bool", "false"))
	add(KeyReportEndpoint, "Reports are posted to this URL.", scalarNode("!!str", ""))

	excludeNode := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	excludeNode.Content = append(excludeNode.Content, scalarNode("!!str", violation_report.FieldSample))
	add(KeyReportExclude, "Report fields removed before deduplication.", excludeNode)

	filtersNode := &yaml.Node{Kind: yaml.MappingNode}
	dispositionNode := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	dispositionNode.Content = append(dispositionNode.Content, scalarNode("!!str", "report"))
	filtersNode.Content = append(filtersNode.Content, scalarNode("!!str", violation_report.FieldDisposition), dispositionNode)
	add(KeyReportFilters, "Reports with any of these field values are ignored.", filtersNode)

	document := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{mapping}}
	data, err := yaml.Marshal(document)
	if err != nil {
		return nil, motmedelErrors.New(fmt.Errorf("yaml marshal: %w", err))
	}

	return data, nil
}
