package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/enginelauncher/pkg/dynlib"
	"github.com/xaionaro-go/enginelauncher/pkg/glutbridge"
	"github.com/xaionaro-go/enginelauncher/pkg/launcherserver/client"
	"github.com/xaionaro-go/observability"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var (
	// Access these variables only from a main package:

	Root = &cobra.Command{
		Use: os.Args[0],
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			l := logger.FromCtx(ctx).WithLevel(LoggerLevel)
			ctx = logger.CtxWithLogger(ctx, l)
			cmd.SetContext(ctx)
			logger.Debugf(ctx, "log-level: %v", LoggerLevel)

			netPprofAddr, err := cmd.Flags().GetString("go-net-pprof-addr")
			if err != nil {
				l.Errorf("unable to get the value of the flag 'go-net-pprof-addr': %v", err)
			}
			if netPprofAddr != "" {
				observability.Go(ctx, func(ctx context.Context) {
					l.Infof("starting to listen for net/pprof requests at '%s'", netPprofAddr)
					l.Error(http.ListenAndServe(netPprofAddr, nil))
				})
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			logger.Debug(ctx, "end")
		},
	}

	Status = &cobra.Command{
		Use:   "status",
		Short: "print the health status of a running launcher",
		Args:  cobra.ExactArgs(0),
		Run:   status,
	}

	Watch = &cobra.Command{
		Use:   "watch",
		Short: "print every health status change of a running launcher",
		Args:  cobra.ExactArgs(0),
		Run:   watch,
	}

	Deps = &cobra.Command{
		Use:   "deps <library>",
		Short: "list the dependencies of a library and the windowing shim among them",
		Args:  cobra.ExactArgs(1),
		Run:   deps,
	}

	Symbols = &cobra.Command{
		Use:   "symbols",
		Short: "list the windowing entry points with their registration symbols",
		Args:  cobra.ExactArgs(0),
		Run:   symbols,
	}

	LoggerLevel = logger.LevelWarning
)

func init() {
	Root.AddCommand(Status)
	Root.AddCommand(Watch)
	Root.AddCommand(Deps)
	Root.AddCommand(Symbols)

	Root.PersistentFlags().Var(&LoggerLevel, "log-level", "")
	Root.PersistentFlags().String("remote-addr", "tcp:localhost:3594", "the address of an enginelauncher instance")
	Root.PersistentFlags().String("go-net-pprof-addr", "", "address to listen to for net/pprof requests")

	Deps.Flags().String("prefix", dynlib.DefaultShimPrefix, "name prefix of the windowing shim")
	Deps.Flags().String("install-dir", "", "directory to look for the shim in; the library's own directory if empty")
}

func assertNoError(ctx context.Context, err error) {
	if err != nil {
		logger.Panic(ctx, err)
	}
}

func protoOutput(ctx context.Context, out io.Writer, msg proto.Message) {
	b, err := protojson.MarshalOptions{EmitUnpopulated: true}.Marshal(msg)
	assertNoError(ctx, err)
	fmt.Fprintf(out, "%s\n", b)
}

func status(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	remoteAddr, err := cmd.Flags().GetString("remote-addr")
	assertNoError(ctx, err)

	client := client.New(remoteAddr)

	resp, err := client.Check(ctx)
	assertNoError(ctx, err)

	protoOutput(ctx, cmd.OutOrStdout(), resp)
}

func watch(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	remoteAddr, err := cmd.Flags().GetString("remote-addr")
	assertNoError(ctx, err)

	client := client.New(remoteAddr)

	statuses, err := client.Watch(ctx)
	assertNoError(ctx, err)

	for s := range statuses {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", s)
	}
}

func deps(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	libPath := args[0]

	prefix, err := cmd.Flags().GetString("prefix")
	assertNoError(ctx, err)
	installDir, err := cmd.Flags().GetString("install-dir")
	assertNoError(ctx, err)

	info, err := os.Stat(libPath)
	assertNoError(ctx, err)

	list, err := dynlib.ListDependencies(ctx, libPath)
	assertNoError(ctx, err)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s):\n", libPath, humanize.IBytes(uint64(info.Size())))
	for _, name := range list {
		fmt.Fprintf(out, "\t%s\n", name)
	}

	shim, err := dynlib.SelectDependency(list, prefix)
	if err != nil {
		fmt.Fprintf(out, "shim: %v\n", err)
		return
	}
	if installDir == "" {
		installDir = filepath.Dir(libPath)
	}
	path, err := dynlib.ShimPath(installDir, shim)
	if err != nil {
		fmt.Fprintf(out, "shim: %s (%v)\n", shim, err)
		return
	}
	fmt.Fprintf(out, "shim: %s\n", path)
}

func symbols(cmd *cobra.Command, args []string) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "ENTRY POINT\tREGISTRATION SYMBOL\tSIGNATURE\n")
	for _, ep := range glutbridge.EntryPoints(nil) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ep.Name, ep.RegistrationSymbol(), ep.Signature)
	}
	w.Flush()
}
