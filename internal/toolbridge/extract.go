// Package toolbridge recovers structured tool calls from free-form assistant
// text.
//
// Models fronted by the relay do not emit protocol-level tool blocks on the
// chat completion surface; invocations show up inside the assistant text in
// one of three conventions, checked in this priority order:
//
//   - Tag form: <read_file><path>/tmp/a.txt</path></read_file>, limited to
//     the built-in tool names read_file, write_file and search. Inner
//     elements map 1:1 to argument keys.
//
//   - Block form: <tool_call>{"name": ..., "arguments": {...}}</tool_call>
//     for any declared tool.
//
//   - Native list form: a verbatim JSON array of backend tool_use content
//     blocks, [{"type":"tool_use","id":...,"name":...,"input":{...}}].
//     Element ids are preserved rather than regenerated.
//
// Every successful match claims a span of the source text. Overlapping spans
// are resolved by the priority above, surviving calls are ordered by source
// position, and the claimed spans are stripped from the residual text. A
// region that fails to parse is not a match: its raw text stays in the
// residual so nothing user-visible is lost.
package toolbridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// Call is one extracted tool invocation. Arguments holds the normalized
// argument object re-serialized to a JSON string, the shape the chat
// completion wire format requires for tool call arguments.
type Call struct {
	ID        string
	Name      string
	Arguments string
}

// Extractor parses tool invocations out of assistant text. It only considers
// tool names the client declared in the request.
type Extractor struct {
	available map[string]struct{}
	log       *slog.Logger
}

// New builds an extractor for the declared tool names. A nil logger disables
// debug output.
func New(names []string, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	available := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name != "" {
			available[name] = struct{}{}
		}
	}

	return &Extractor{available: available, log: log}
}

// Span priorities, lower wins when regions overlap.
const (
	priorityTag = iota
	priorityBlock
	priorityNativeList
)

// region is one matched span of the source text together with the calls it
// yields. A region may yield no calls, for example a built-in tag whose
// argument elements are all empty; its span is still stripped.
type region struct {
	start, end int
	priority   int
	calls      []rawCall
}

// rawCall is a parsed invocation before argument normalization. id is empty
// unless the source form carried one.
type rawCall struct {
	name string
	args map[string]any
	id   string
}

// Extract returns the tool calls found in text and the residual text with
// the matched regions removed. When nothing matches, the input is returned
// byte for byte; otherwise the residual is trimmed of surrounding
// whitespace.
func (e *Extractor) Extract(text string) ([]Call, string) {
	var regions []region
	regions = append(regions, e.matchTags(text)...)
	regions = append(regions, e.matchBlocks(text)...)
	regions = append(regions, e.matchNativeLists(text)...)

	accepted := resolveOverlaps(regions)
	if len(accepted) == 0 {
		return nil, text
	}

	var calls []Call
	for _, reg := range accepted {
		for _, raw := range reg.calls {
			call := Call{
				ID:        raw.id,
				Name:      raw.name,
				Arguments: marshalArgs(normalizeArgs(raw.name, raw.args)),
			}
			if call.ID == "" {
				call.ID = fmt.Sprintf("call_%s_%d", raw.name, len(calls))
			}
			calls = append(calls, call)
		}
	}

	remaining := strings.TrimSpace(cutRegions(text, accepted))
	e.log.Debug("extracted tool calls", "count", len(calls), "remaining_bytes", len(remaining))
	return calls, remaining
}

// builtinTags are the tool names recognized in tag form. Other declared
// tools must use the block or native list form.
var builtinTags = []string{"read_file", "write_file", "search"}

var tagPatterns = map[string]*regexp.Regexp{
	"read_file":  regexp.MustCompile(`(?is)<read_file>(.*?)</read_file>`),
	"write_file": regexp.MustCompile(`(?is)<write_file>(.*?)</write_file>`),
	"search":     regexp.MustCompile(`(?is)<search>(.*?)</search>`),
}

var tagArgPattern = regexp.MustCompile(`(?is)<([a-z_][a-z0-9_]*)>(.*?)</([a-z_][a-z0-9_]*)>`)

// matchTags finds built-in tag invocations such as
// <read_file><path>/tmp/a.txt</path></read_file>.
func (e *Extractor) matchTags(text string) []region {
	var regions []region
	for _, name := range builtinTags {
		if _, ok := e.available[name]; !ok {
			continue
		}

		for _, idx := range tagPatterns[name].FindAllStringSubmatchIndex(text, -1) {
			reg := region{start: idx[0], end: idx[1], priority: priorityTag}
			if args := parseTagArgs(text[idx[2]:idx[3]]); len(args) > 0 {
				reg.calls = []rawCall{{name: name, args: args}}
			}
			regions = append(regions, reg)
		}
	}
	return regions
}

// parseTagArgs reads inner <key>value</key> elements into an argument
// object. Elements with mismatched closing tags or empty values are skipped.
func parseTagArgs(inner string) map[string]any {
	var args map[string]any
	for _, m := range tagArgPattern.FindAllStringSubmatch(inner, -1) {
		if !strings.EqualFold(m[1], m[3]) {
			continue
		}
		value := strings.TrimSpace(m[2])
		if value == "" {
			continue
		}
		if args == nil {
			args = make(map[string]any)
		}
		args[strings.ToLower(m[1])] = value
	}
	return args
}

var blockPattern = regexp.MustCompile(`(?is)<tool_call>(.*?)</tool_call>`)

// matchBlocks finds <tool_call> JSON blocks. Blocks whose payload does not
// parse, names an undeclared tool, or carries non-object arguments are not
// matches and stay in the text.
func (e *Extractor) matchBlocks(text string) []region {
	var regions []region
	for _, idx := range blockPattern.FindAllStringSubmatchIndex(text, -1) {
		payload := strings.TrimSpace(text[idx[2]:idx[3]])

		var block struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(payload), &block); err != nil {
			continue
		}
		if _, ok := e.available[block.Name]; !ok {
			continue
		}

		args := block.Arguments
		if args == nil {
			args = map[string]any{}
		}
		regions = append(regions, region{
			start:    idx[0],
			end:      idx[1],
			priority: priorityBlock,
			calls:    []rawCall{{name: block.Name, args: args}},
		})
	}
	return regions
}

// matchNativeLists finds verbatim JSON arrays of backend tool_use content
// blocks anywhere in the text. The decoder reports how many bytes the array
// consumed, which bounds the span to strip.
func (e *Extractor) matchNativeLists(text string) []region {
	var regions []region
	for start := 0; start < len(text); {
		off := strings.IndexByte(text[start:], '[')
		if off < 0 {
			break
		}
		abs := start + off

		reg, consumed := e.decodeNativeList(text[abs:])
		if consumed == 0 {
			start = abs + 1
			continue
		}

		reg.start = abs
		reg.end = abs + consumed
		regions = append(regions, reg)
		start = abs + consumed
	}
	return regions
}

// decodeNativeList attempts to read one JSON array of tool_use objects from
// the start of text. It returns the consumed byte count, or zero when the
// text does not begin with an array yielding at least one declared call.
func (e *Extractor) decodeNativeList(text string) (region, int) {
	dec := json.NewDecoder(strings.NewReader(text))

	var items []json.RawMessage
	if err := dec.Decode(&items); err != nil {
		return region{}, 0
	}

	reg := region{priority: priorityNativeList}
	for _, raw := range items {
		var item struct {
			Type  string         `json:"type"`
			ID    string         `json:"id"`
			Name  string         `json:"name"`
			Input map[string]any `json:"input"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if item.Type != "tool_use" {
			continue
		}
		if _, ok := e.available[item.Name]; !ok {
			continue
		}

		args := item.Input
		if args == nil {
			args = map[string]any{}
		}
		reg.calls = append(reg.calls, rawCall{name: item.Name, args: args, id: item.ID})
	}

	if len(reg.calls) == 0 {
		return region{}, 0
	}
	return reg, int(dec.InputOffset())
}

// resolveOverlaps keeps the highest-priority region of every overlapping
// pair and returns the survivors ordered by source position.
func resolveOverlaps(regions []region) []region {
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].priority != regions[j].priority {
			return regions[i].priority < regions[j].priority
		}
		return regions[i].start < regions[j].start
	})

	var accepted []region
	for _, reg := range regions {
		if overlapsAny(accepted, reg) {
			continue
		}
		accepted = append(accepted, reg)
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })
	return accepted
}

func overlapsAny(accepted []region, reg region) bool {
	for _, a := range accepted {
		if reg.start < a.end && a.start < reg.end {
			return true
		}
	}
	return false
}

// cutRegions removes the accepted spans, which arrive ordered and disjoint.
func cutRegions(text string, accepted []region) string {
	var b strings.Builder
	last := 0
	for _, reg := range accepted {
		b.WriteString(text[last:reg.start])
		last = reg.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// marshalArgs renders the argument object as a JSON string. Go sorts map
// keys during marshaling, so the output is stable across runs.
func marshalArgs(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
