// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobgraph

import (
	"encoding/json"

	"github.com/bureau-foundation/inference-node/protocol"
)

// Video defaults. Steps, cfg, and sampler are fixed for this model.
const (
	DefaultVideoSeed     = 77777
	DefaultVideoWidth    = 1280
	DefaultVideoHeight   = 704
	DefaultVideoFrames   = 125
	DefaultVideoPrefix   = "mesh_video"
	DefaultVideoNegative = "blurry, distorted, cartoon"

	VideoSteps     = 20
	VideoCFG       = 5
	VideoSampler   = "uni_pc"
	VideoScheduler = "simple"
	VideoFPS       = 24
	VideoShift     = 8

	VideoUNet = "wan2.2_ti2v_5B_fp16.safetensors"
	VideoCLIP = "umt5_xxl_fp8_e4m3fn_scaled.safetensors"
	VideoVAE  = "wan2.2_vae.safetensors"
)

// buildVideo builds a text-to-video graph for the Wan 2.2 TI2V model:
// loaders, conditioning, a model-sampling shift, an image-to-video
// latent, sampling, decode, video assembly, and save.
func buildVideo(variant Variant, prompt json.RawMessage, options protocol.Options) (*Job, error) {
	text, err := textFields(variant.Kind, prompt, "prompt")
	if err != nil {
		return nil, err
	}

	read := &optionReader{kind: variant.Kind, options: options}
	seed := read.seed("seed", DefaultVideoSeed)
	width := read.integer("width", DefaultVideoWidth)
	height := read.integer("height", DefaultVideoHeight)
	frames := read.integer("frames", DefaultVideoFrames)
	prefix := read.text("filename", DefaultVideoPrefix)
	if read.err != nil {
		return nil, read.err
	}

	graph := Graph{
		"unet": {ClassType: "UNETLoader", Inputs: map[string]any{
			"unet_name":    VideoUNet,
			"weight_dtype": "default",
		}},
		"clip": {ClassType: "CLIPLoader", Inputs: map[string]any{
			"clip_name": VideoCLIP,
			"type":      "wan",
		}},
		"vae": {ClassType: "VAELoader", Inputs: map[string]any{
			"vae_name": VideoVAE,
		}},
		"pos": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"clip": Link("clip", 0),
			"text": text["prompt"],
		}},
		"neg": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"clip": Link("clip", 0),
			"text": DefaultVideoNegative,
		}},
		"model_shift": {ClassType: "ModelSamplingSD3", Inputs: map[string]any{
			"model": Link("unet", 0),
			"shift": VideoShift,
		}},
		"i2v": {ClassType: "Wan22ImageToVideoLatent", Inputs: map[string]any{
			"vae":        Link("vae", 0),
			"width":      width,
			"height":     height,
			"length":     frames,
			"batch_size": 1,
		}},
		"samp": {ClassType: "KSampler", Inputs: map[string]any{
			"seed":         seed,
			"steps":        VideoSteps,
			"cfg":          VideoCFG,
			"sampler_name": VideoSampler,
			"scheduler":    VideoScheduler,
			"denoise":      1,
			"model":        Link("model_shift", 0),
			"positive":     Link("pos", 0),
			"negative":     Link("neg", 0),
			"latent_image": Link("i2v", 0),
		}},
		"decode": {ClassType: "VAEDecode", Inputs: map[string]any{
			"samples": Link("samp", 0),
			"vae":     Link("vae", 0),
		}},
		"create_video": {ClassType: "CreateVideo", Inputs: map[string]any{
			"images": Link("decode", 0),
			"fps":    VideoFPS,
		}},
		"save": {ClassType: "SaveVideo", Inputs: map[string]any{
			"video":           Link("create_video", 0),
			"filename_prefix": prefix,
			"format":          "mp4",
			"codec":           "auto",
		}},
	}
	return newBuiltJob(variant, graph)
}
