package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boddenberg/netgen/internal/domain"
)

// ValidationPrompt wraps a configuration in the review instructions sent to
// the backend.
func ValidationPrompt(config string) string {
	return fmt.Sprintf(`Review the following network device configuration:
%s

Check for:
1. Syntax errors
2. Internal consistency
3. Security problems
4. Best-practice violations

Answer in JSON:
{
    "is_valid": true/false,
    "errors": ["error1", "error2"],
    "warnings": ["warning1", "warning2"],
    "suggestions": ["suggestion1", "suggestion2"]
}
`, config)
}

// ParseVerdict extracts the JSON object a model embedded in its commentary.
// It returns nil when no well-formed object is found.
func ParseVerdict(text string) *domain.ModelVerdict {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil
	}
	if _, ok := raw["is_valid"]; !ok {
		return nil
	}

	var v domain.ModelVerdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return nil
	}
	return &v
}

// BuildConfigPrompt renders the generation prompt for a device request.
func BuildConfigPrompt(req domain.ConfigRequest) string {
	var b strings.Builder
	b.WriteString("Network configuration task:\n\n")
	fmt.Fprintf(&b, "Device name: %s\n", req.DeviceName)
	fmt.Fprintf(&b, "Configuration type: %s\n", req.ConfigType)
	fmt.Fprintf(&b, "Request: %s\n\n", req.Query)
	b.WriteString(formatContext(req.Context))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Using the information above, write the %s configuration for %s.\n", req.ConfigType, req.DeviceName)
	b.WriteString(`Use Cisco IOS syntax with this structure:

1. Basic settings (hostname, ip routing, etc.)
2. Interface settings
3. Protocol settings (OSPF, BGP, etc.)
4. Security settings
5. Monitoring settings

`)
	fmt.Fprintf(&b, "Replace the variable {hostname} with %s.\n", req.DeviceName)
	return b.String()
}

func formatContext(c *domain.PromptContext) string {
	if c == nil {
		return "No additional context."
	}
	var lines []string
	if len(c.RelevantDevices) > 0 {
		lines = append(lines, "Related devices: "+strings.Join(c.RelevantDevices, ", "))
	}
	if len(c.RelevantPolicies) > 0 {
		lines = append(lines, "Related policies: "+strings.Join(c.RelevantPolicies, ", "))
	}
	if len(c.RelevantTemplates) > 0 {
		lines = append(lines, "Related templates: "+strings.Join(c.RelevantTemplates, ", "))
	}
	if len(lines) == 0 {
		return "No additional context."
	}
	return strings.Join(lines, "\n")
}
