// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobgraph

import (
	"encoding/json"

	"github.com/bureau-foundation/inference-node/protocol"
)

// Image defaults.
const (
	DefaultImageSeed       = 42
	DefaultImageSteps      = 20
	DefaultImageCFG        = 8
	DefaultImageSampler    = "euler"
	DefaultImageScheduler  = "normal"
	DefaultImageCheckpoint = "sd_xl_base_1.0.safetensors"
	DefaultImageSize       = 1024
	DefaultImageNegative   = "bad quality"
	DefaultImagePrefix     = "mesh_generated"
)

// buildImage builds a text-to-image graph:
//
//	3,4 CLIPTextEncode ─┐
//	6 checkpoint ───────┼─ 5 KSampler ─ 8 VAEDecode ─ 9 SaveImage
//	7 EmptyLatentImage ─┘
//
// The checkpoint's outputs are 0 model, 1 clip, 2 vae.
func buildImage(variant Variant, prompt json.RawMessage, options protocol.Options) (*Job, error) {
	text, err := textFields(variant.Kind, prompt, "positive")
	if err != nil {
		return nil, err
	}
	negative, ok := text["negative"]
	if !ok {
		negative = DefaultImageNegative
	}

	read := &optionReader{kind: variant.Kind, options: options}
	seed := read.seed("seed", DefaultImageSeed)
	steps := read.integer("steps", DefaultImageSteps)
	cfg := read.number("cfg", DefaultImageCFG)
	sampler := read.text("sampler", DefaultImageSampler)
	checkpoint := read.text("model", DefaultImageCheckpoint)
	width := read.integer("width", DefaultImageSize)
	height := read.integer("height", DefaultImageSize)
	prefix := read.text("filename", DefaultImagePrefix)
	denoise := read.number("denoise", 1)
	if read.err != nil {
		return nil, read.err
	}

	graph := Graph{
		"3": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": text["positive"],
			"clip": Link("6", 1),
		}},
		"4": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": negative,
			"clip": Link("6", 1),
		}},
		"5": {ClassType: "KSampler", Inputs: map[string]any{
			"seed":         seed,
			"steps":        steps,
			"cfg":          cfg,
			"sampler_name": sampler,
			"scheduler":    DefaultImageScheduler,
			"denoise":      denoise,
			"model":        Link("6", 0),
			"positive":     Link("3", 0),
			"negative":     Link("4", 0),
			"latent_image": Link("7", 0),
		}},
		"6": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{
			"ckpt_name": checkpoint,
		}},
		"7": {ClassType: "EmptyLatentImage", Inputs: map[string]any{
			"width":      width,
			"height":     height,
			"batch_size": 1,
		}},
		"8": {ClassType: "VAEDecode", Inputs: map[string]any{
			"samples": Link("5", 0),
			"vae":     Link("6", 2),
		}},
		"9": {ClassType: "SaveImage", Inputs: map[string]any{
			"images":          Link("8", 0),
			"filename_prefix": prefix,
		}},
	}
	return newBuiltJob(variant, graph)
}
