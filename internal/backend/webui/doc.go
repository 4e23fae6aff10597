// Package webui talks to Automatic1111-compatible Stable Diffusion WebUI
// servers. It builds txt2img payloads from tasks, submits them, and decodes
// the returned image artifact.
package webui
