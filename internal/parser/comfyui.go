package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"metapick/internal/extract"
	"metapick/internal/rawmeta"
	"metapick/internal/record"
)

// comfyKeys hold workflow or prompt-graph JSON, in lookup order.
var comfyKeys = []string{"workflow", "prompt", "ComfyUI", "comfyui"}

// widgetInputs names the positional widgets_values of common nodes in the
// editor workflow format. Empty names are skipped.
var widgetInputs = map[string][]string{
	"CheckpointLoaderSimple": {"ckpt_name"},
	"KSampler":               {"seed", "", "steps", "cfg", "sampler_name", "scheduler", "denoise"},
	"KSamplerAdvanced":       {"", "noise_seed", "", "steps", "cfg", "sampler_name", "scheduler"},
	"CLIPTextEncode":         {"text"},
	"EmptyLatentImage":       {"width", "height", "batch_size"},
	"LoraLoader":             {"lora_name", "strength_model", "strength_clip"},
	"LoraLoaderModelOnly":    {"lora_name", "strength_model"},
	"VAELoader":              {"vae_name"},
	"ControlNetLoader":       {"control_net_name"},
	"ControlNetApply":        {"strength"},
}

var (
	comfyCFGRe     = regexp.MustCompile(`(?i)\bCFG(?:\s*scale)?\s*[:=]?\s*([0-9.]+)`)
	comfyModelRe   = regexp.MustCompile(`(?i)\bModel\s*[:=]\s*([^,\n]+)`)
	comfySamplerRe = regexp.MustCompile(`(?i)\bSampler\s*[:=]\s*([^,\n]+)`)
)

// ComfyUI parses node graphs saved by ComfyUI, either the API prompt graph
// (node id to {class_type, inputs}) or the editor workflow with a nodes
// list.
type ComfyUI struct{}

// NewComfyUI returns the ComfyUI plugin.
func NewComfyUI() *ComfyUI { return &ComfyUI{} }

func (*ComfyUI) Name() string { return NameComfyUI }

func (*ComfyUI) Detect(raw rawmeta.RawMetadata) bool {
	if _, ok := comfyDocument(raw); ok {
		return true
	}
	params := strings.ToLower(parametersText(raw))
	return strings.Contains(params, "comfyui") || strings.Contains(params, "workflow")
}

func (*ComfyUI) Parse(raw rawmeta.RawMetadata) (*record.Record, error) {
	rec := &record.Record{Source: record.SourceComfyUI}

	if doc, ok := comfyDocument(raw); ok {
		if v, present := doc["nodes"]; present {
			switch v.(type) {
			case []any, map[string]any:
			default:
				return nil, fmt.Errorf("workflow nodes has unexpected type %T", v)
			}
		}
		applyNodes(rec, collectNodes(doc))
	}

	if params := parametersText(raw); params != "" {
		fillFromParameters(rec, params)
	}
	return rec, nil
}

// comfyDocument returns the first candidate value that decodes to a
// workflow or prompt graph.
func comfyDocument(raw rawmeta.RawMetadata) (map[string]any, bool) {
	for _, key := range comfyKeys {
		s, ok := raw.Text(key)
		if !ok {
			continue
		}
		obj, ok := decodeObject(s)
		if !ok {
			continue
		}
		if hasAnyKey(obj, "nodes", "workflow", "extra_data") || isPromptGraph(obj) {
			return obj, true
		}
	}
	return nil, false
}

// isPromptGraph reports whether obj maps node ids to {class_type, inputs}.
func isPromptGraph(obj map[string]any) bool {
	for _, v := range obj {
		node, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := node["class_type"].(string); ok {
			return true
		}
	}
	return false
}

type comfyNode struct {
	id        string
	classType string
	inputs    map[string]any
}

// collectNodes flattens either graph format into nodes sorted by id.
func collectNodes(doc map[string]any) []comfyNode {
	var nodes []comfyNode

	switch list := doc["nodes"].(type) {
	case []any:
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id, _ := asString(m["id"])
			nodes = append(nodes, newNode(id, m))
		}
	case map[string]any:
		for id, item := range list {
			if m, ok := item.(map[string]any); ok {
				nodes = append(nodes, newNode(id, m))
			}
		}
	default:
		if inner, ok := doc["workflow"].(map[string]any); ok {
			return collectNodes(inner)
		}
		for id, item := range doc {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := m["class_type"].(string); ok {
				nodes = append(nodes, newNode(id, m))
			}
		}
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		a, errA := strconv.Atoi(nodes[i].id)
		b, errB := strconv.Atoi(nodes[j].id)
		if errA == nil && errB == nil {
			return a < b
		}
		return nodes[i].id < nodes[j].id
	})
	return nodes
}

func newNode(id string, m map[string]any) comfyNode {
	n := comfyNode{id: id, inputs: map[string]any{}}
	n.classType, _ = m["class_type"].(string)
	if n.classType == "" {
		n.classType, _ = m["type"].(string)
	}
	if inputs, ok := m["inputs"].(map[string]any); ok {
		for k, v := range inputs {
			n.inputs[k] = v
		}
	}
	if widgets, ok := m["widgets_values"].([]any); ok {
		for i, name := range widgetInputs[n.classType] {
			if name == "" || i >= len(widgets) {
				continue
			}
			if _, exists := n.inputs[name]; !exists {
				n.inputs[name] = widgets[i]
			}
		}
	}
	return n
}

func applyNodes(rec *record.Record, nodes []comfyNode) {
	byID := make(map[string]comfyNode, len(nodes))
	for _, n := range nodes {
		byID[n.id] = n
	}

	var texts []string
	var linkedPositive, linkedNegative string

	for _, n := range nodes {
		class := n.classType
		lower := strings.ToLower(class)

		switch {
		case strings.Contains(lower, "lora"):
			name, ok := asString(n.inputs["lora_name"])
			if !ok {
				continue
			}
			weight := 1.0
			if w, ok := asFloat(n.inputs["strength_model"]); ok {
				weight = *w
			}
			rec.LoRA = append(rec.LoRA, record.LoRA{Name: name, Weight: weight})

		case strings.Contains(class, "CheckpointLoader") || strings.Contains(class, "ModelLoader") ||
			strings.Contains(class, "UNETLoader"):
			if rec.Model == "" {
				if name, ok := asString(n.inputs["ckpt_name"]); ok {
					rec.Model = name
				} else if name, ok := asString(n.inputs["unet_name"]); ok {
					rec.Model = name
				}
			}

		case strings.Contains(class, "KSampler") || strings.Contains(lower, "sampler"):
			applySampler(rec, n.inputs)
			if text, ok := linkedText(byID, n.inputs["positive"]); ok && linkedPositive == "" {
				linkedPositive = text
			}
			if text, ok := linkedText(byID, n.inputs["negative"]); ok && linkedNegative == "" {
				linkedNegative = text
			}

		case strings.Contains(class, "TextEncode"):
			if text, ok := nodeText(n); ok {
				texts = append(texts, text)
			}

		case strings.Contains(class, "EmptyLatentImage") || strings.Contains(class, "LatentUpscale"):
			if w, ok := asInt(n.inputs["width"]); ok {
				rec.Width = w
			}
			if h, ok := asInt(n.inputs["height"]); ok {
				rec.Height = h
			}

		case strings.Contains(class, "ControlNet"):
			if rec.ControlNet == nil {
				rec.ControlNet = &record.ControlNet{}
			}
			if name, ok := asString(n.inputs["control_net_name"]); ok {
				rec.ControlNet.Model = name
			}
			if s, ok := asFloat(n.inputs["strength"]); ok {
				rec.ControlNet.Weight = s
			}
			if s, ok := asFloat(n.inputs["start_percent"]); ok {
				rec.ControlNet.GuidanceStart = s
			}
			if s, ok := asFloat(n.inputs["end_percent"]); ok {
				rec.ControlNet.GuidanceEnd = s
			}

		case strings.Contains(class, "VAE"):
			if name, ok := asString(n.inputs["vae_name"]); ok {
				rec.VAE = name
			}
		}
	}

	switch {
	case linkedPositive != "":
		rec.Prompt = linkedPositive
		rec.NegativePrompt = linkedNegative
	case len(texts) > 0:
		rec.Prompt = texts[0]
		for _, t := range texts[1:] {
			if t != texts[0] {
				rec.NegativePrompt = t
				break
			}
		}
	}
	rec.LoRA = append(rec.LoRA, extract.LoRA(rec.Prompt)...)
}

func applySampler(rec *record.Record, inputs map[string]any) {
	if rec.Seed == nil {
		for _, key := range []string{"seed", "noise_seed"} {
			if n, ok := asInt64(inputs[key]); ok {
				rec.Seed = &n
				break
			}
		}
	}
	if rec.Steps == nil {
		if n, ok := asInt(inputs["steps"]); ok {
			rec.Steps = n
		}
	}
	if rec.CFG == nil {
		if f, ok := asFloat(inputs["cfg"]); ok {
			rec.CFG = f
		}
	}
	if rec.Sampler == "" {
		rec.Sampler, _ = asString(inputs["sampler_name"])
	}
	if rec.Scheduler == "" {
		rec.Scheduler, _ = asString(inputs["scheduler"])
	}
	if rec.DenoisingStrength == nil {
		if f, ok := asFloat(inputs["denoise"]); ok {
			rec.DenoisingStrength = f
		}
	}
}

func nodeText(n comfyNode) (string, bool) {
	for _, key := range []string{"text", "text_g"} {
		if s, ok := n.inputs[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

// linkedText follows a ["node id", slot] input link to a text encoder.
func linkedText(byID map[string]comfyNode, link any) (string, bool) {
	pair, ok := link.([]any)
	if !ok || len(pair) == 0 {
		return "", false
	}
	id, ok := asString(pair[0])
	if !ok {
		return "", false
	}
	n, ok := byID[id]
	if !ok || !strings.Contains(n.classType, "TextEncode") {
		return "", false
	}
	return nodeText(n)
}

// fillFromParameters fills fields the graph did not provide from a
// "parameters" text.
func fillFromParameters(rec *record.Record, params string) {
	p := extract.TechnicalParams(params)
	if rec.Seed == nil {
		rec.Seed = p.Seed
	}
	if rec.Steps == nil {
		rec.Steps = p.Steps
	}
	if rec.CFG == nil {
		if p.CFGScale != nil {
			rec.CFG = p.CFGScale
		} else if m := comfyCFGRe.FindStringSubmatch(params); m != nil {
			rec.CFG = extract.ParseFloat(m[1])
		}
	}
	if rec.Sampler == "" {
		if m := comfySamplerRe.FindStringSubmatch(params); m != nil {
			rec.Sampler = strings.TrimSpace(m[1])
		}
	}
	if rec.Scheduler == "" {
		rec.Scheduler = p.Scheduler
	}
	if rec.Model == "" {
		if m := comfyModelRe.FindStringSubmatch(params); m != nil {
			rec.Model = strings.TrimSpace(m[1])
		}
	}
	if rec.Width == nil || rec.Height == nil {
		w, h := extract.Dimensions(params)
		if rec.Width == nil {
			rec.Width = w
		}
		if rec.Height == nil {
			rec.Height = h
		}
	}
}
