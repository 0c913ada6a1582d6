//go:build android

package logredirect

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/facebookincubator/go-belt/tool/logger"
)

const androidLogLibrary = "liblog.so"

var (
	androidLogWriteOnce sync.Once
	androidLogWrite     func(prio int32, tag, text *byte) int32
	androidLogWriteErr  error
)

func loadAndroidLogWrite() error {
	androidLogWriteOnce.Do(func() {
		h, err := purego.Dlopen(androidLogLibrary, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			androidLogWriteErr = fmt.Errorf("unable to open '%s': %w", androidLogLibrary, err)
			return
		}
		sym, err := purego.Dlsym(h, "__android_log_write")
		if err != nil {
			androidLogWriteErr = fmt.Errorf("unable to find __android_log_write in '%s': %w", androidLogLibrary, err)
			return
		}
		purego.RegisterFunc(&androidLogWrite, sym)
	})
	return androidLogWriteErr
}

// AndroidLogSink writes lines to the Android system log.
type AndroidLogSink struct {
	Priority Priority
}

var _ Sink = (*AndroidLogSink)(nil)

func NewAndroidLogSink(ctx context.Context, priority Priority) (*AndroidLogSink, error) {
	if err := loadAndroidLogWrite(); err != nil {
		return nil, err
	}
	logger.Debugf(ctx, "writing captured output to the Android log at priority %s", priority)
	return &AndroidLogSink{Priority: priority}, nil
}

func (s *AndroidLogSink) WriteLine(ctx context.Context, tag string, line string) error {
	cTag := append([]byte(tag), 0)
	cLine := append([]byte(line), 0)
	if rc := androidLogWrite(int32(s.Priority), unsafe.SliceData(cTag), unsafe.SliceData(cLine)); rc < 0 {
		return fmt.Errorf("__android_log_write returned %d", rc)
	}
	return nil
}

// NewSystemSink returns the sink matching the platform log facility.
func NewSystemSink(ctx context.Context, priority Priority) (Sink, error) {
	return NewAndroidLogSink(ctx, priority)
}
