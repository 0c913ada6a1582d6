//go:build !android
// +build !android

package main

import (
	"context"
)

func platformInit(context.Context) {}
