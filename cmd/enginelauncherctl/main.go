package main

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/xaionaro-go/enginelauncher/cmd/enginelauncherctl/commands"
)

func main() {
	ctx := logger.CtxWithLogger(context.Background(), xlogrus.Default())
	err := commands.Root.ExecuteContext(ctx)
	if err != nil {
		logger.Panic(ctx, err)
	}
}
