// Package console 交互式运维控制台
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/BlacK-CHi/tincanOpener/internal/bridge"
	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

const prompt = "\033[32mtincan>\033[0m "

// ErrNotTerminal 标准输入不是终端
var ErrNotTerminal = coreerrors.New(coreerrors.CodeInvalidState, "stdin is not a terminal")

var (
	colorOK    = color.New(color.FgGreen).SprintFunc()
	colorWarn  = color.New(color.FgYellow).SprintFunc()
	colorError = color.New(color.FgRed).SprintFunc()
	colorBold  = color.New(color.Bold).SprintFunc()
	colorFaint = color.New(color.Faint).SprintFunc()
)

// Relay 控制台需要的中继操作
type Relay interface {
	Status() (bridge.Status, error)
	DisconnectAll() error
}

// Options 控制台选项
type Options struct {
	Relay      Relay
	Endpoint   string // 展示给用户的下游地址
	ConfigFile string
	LogFile    string
	Shutdown   func()            // stop 命令
	Open       func(string) error // 为空时使用系统默认程序
	Out        io.Writer
}

// Console 控制台
type Console struct {
	opts Options
	rl   *readline.Instance
	wg   sync.WaitGroup
}

// New 创建控制台，标准输入不是终端时返回 ErrNotTerminal
func New(opts Options) (*Console, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return nil, ErrNotTerminal
	}
	return newConsole(opts), nil
}

func newConsole(opts Options) *Console {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Open == nil {
		opts.Open = OpenFile
	}
	if opts.Shutdown == nil {
		opts.Shutdown = func() {}
	}
	return &Console{opts: opts}
}

// Name 服务名
func (c *Console) Name() string { return "console" }

// Start 在后台读取命令
func (c *Console) Start(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "stop",
		Stdout:          c.opts.Out,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	c.rl = rl

	fmt.Fprintf(c.opts.Out, "  Type %s for available commands\n", colorBold("help"))
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(ctx)
	}()
	return nil
}

// Stop 关闭 readline 并等待读取协程退出
func (c *Console) Stop(ctx context.Context) error {
	if c.rl == nil {
		return nil
	}
	err := c.rl.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}

func (c *Console) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		line, err := c.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				fmt.Fprintln(c.opts.Out, colorFaint("  use 'stop' to shut down"))
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			corelog.Debugf("console: readline: %v", err)
			return
		}
		if !c.Execute(line) {
			return
		}
	}
}

// Execute 执行一行命令，返回 false 表示控制台应退出
func (c *Console) Execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch strings.ToLower(fields[0]) {
	case "help", "h", "?":
		c.cmdHelp()
	case "status", "st":
		c.cmdStatus()
	case "config":
		c.cmdOpen("config file", c.opts.ConfigFile)
	case "log":
		c.cmdOpen("log file", c.opts.LogFile)
	case "disconnect", "dc":
		c.cmdDisconnect()
	case "stop", "exit", "quit":
		fmt.Fprintln(c.opts.Out, colorWarn("  shutting down..."))
		c.opts.Shutdown()
		return false
	default:
		fmt.Fprintf(c.opts.Out, "%s unknown command: %s (type 'help')\n", colorError("✗"), fields[0])
	}
	return true
}

func (c *Console) cmdHelp() {
	rows := [][2]string{
		{"status", "show relay status"},
		{"config", "open the config file"},
		{"log", "open the log file"},
		{"disconnect", "close all clients and the upstream session"},
		{"stop", "shut down the relay"},
		{"help", "show this help"},
	}
	fmt.Fprintln(c.opts.Out, colorBold("  Commands"))
	for _, r := range rows {
		fmt.Fprintf(c.opts.Out, "    %-12s %s\n", r[0], colorFaint(r[1]))
	}
}

func (c *Console) cmdStatus() {
	st, err := c.opts.Relay.Status()
	if err != nil {
		fmt.Fprintf(c.opts.Out, "%s %v\n", colorError("✗"), err)
		return
	}
	creds := "not set"
	if st.CredentialsSet {
		creds = "set (" + st.SocketURL + ")"
	}
	transport := "down"
	if st.Transport {
		transport = "up"
	}
	fmt.Fprintf(c.opts.Out, "  %-12s %s\n", "endpoint", c.opts.Endpoint)
	fmt.Fprintf(c.opts.Out, "  %-12s %s\n", "upstream", stateLabel(st.State))
	fmt.Fprintf(c.opts.Out, "  %-12s %s\n", "transport", transport)
	fmt.Fprintf(c.opts.Out, "  %-12s %d\n", "clients", st.Clients)
	fmt.Fprintf(c.opts.Out, "  %-12s %s\n", "credentials", creds)
}

func stateLabel(s bridge.State) string {
	if s == bridge.StateConnected {
		return colorOK(s.String())
	}
	return colorWarn(s.String())
}

func (c *Console) cmdOpen(what, path string) {
	if path == "" {
		fmt.Fprintf(c.opts.Out, "%s no %s configured\n", colorWarn("!"), what)
		return
	}
	if err := c.opts.Open(path); err != nil {
		fmt.Fprintf(c.opts.Out, "%s failed to open %s: %v\n", colorError("✗"), what, err)
		return
	}
	fmt.Fprintf(c.opts.Out, "%s opened %s\n", colorOK("✓"), path)
}

func (c *Console) cmdDisconnect() {
	corelog.Infof("disconnecting all clients (console)")
	if err := c.opts.Relay.DisconnectAll(); err != nil {
		fmt.Fprintf(c.opts.Out, "%s %v\n", colorError("✗"), err)
		return
	}
	fmt.Fprintf(c.opts.Out, "%s all clients disconnected\n", colorOK("✓"))
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("status"),
		readline.PcItem("config"),
		readline.PcItem("log"),
		readline.PcItem("disconnect"),
		readline.PcItem("stop"),
	)
}
