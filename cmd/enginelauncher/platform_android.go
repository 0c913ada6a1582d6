//go:build android
// +build android

package main

// platform_android.go provides Android-specific initialization.

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/ndk/binder"
)

// platformInit starts the binder thread pool: the engine talks to system
// services, and nobody else in a plain executable would start it.
func platformInit(ctx context.Context) {
	binder.ThreadPoolStart(0)
	logger.Debugf(ctx, "binder thread pool started")
}
