package relay

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/BlacK-CHi/tincanOpener/internal/config/schema"
	"github.com/BlacK-CHi/tincanOpener/internal/version"

	"github.com/fatih/color"
)

const (
	bannerWidth = 60
)

var (
	bannerCyan  = color.New(color.FgCyan).SprintFunc()
	bannerBold  = color.New(color.Bold).SprintFunc()
	bannerGreen = color.New(color.FgGreen).SprintFunc()
	bannerFaint = color.New(color.Faint).SprintFunc()
)

type bannerRow struct {
	label string
	value string
}

// DisplayStartupBanner 输出启动信息
func (s *Server) DisplayStartupBanner(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", bannerCyan(bannerBold("캔따개 ─ WebSocket-Socket.IO 프록시")))
	fmt.Fprintf(w, "  %s\n", bannerFaint("Written by 블랙치이 (@BKCHI_shelter)"))
	fmt.Fprintf(w, "  %s\n", bannerFaint("Version "+version.GetShortVersion()))
	fmt.Fprintln(w)

	writeSection(w, "Relay", s.infoRows())
	writeSection(w, "Features", s.featureRows())

	fmt.Fprintln(w, bannerFaint("  "+strings.Repeat("━", bannerWidth)))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Connect downstream clients to %s\n", bannerGreen(s.Endpoint()))
	fmt.Fprintln(w)
}

func writeSection(w io.Writer, title string, rows []bannerRow) {
	fmt.Fprintln(w, bannerBold("  "+title))
	fmt.Fprintln(w, bannerFaint("  "+strings.Repeat("─", bannerWidth)))
	for _, row := range rows {
		fmt.Fprintf(w, "  %-18s %s\n", bannerBold(row.label+":"), row.value)
	}
	fmt.Fprintln(w)
}

func (s *Server) infoRows() []bannerRow {
	return []bannerRow{
		{"Endpoint", s.Endpoint()},
		{"Config File", displayPath(s.configPath, "(defaults)")},
		{"Log File", displayPath(s.config.Log.File, "(stdout only)")},
		{"Start Time", time.Now().Format("2006-01-02 15:04:05")},
		{"Upstream", fmt.Sprintf("Engine.IO v%d", s.config.Upstream.EIOVersion)},
	}
}

func (s *Server) featureRows() []bannerRow {
	return []bannerRow{
		{"Metrics", s.metricsInfo()},
		{"Mirror", s.mirrorInfo()},
		{"Console", enabledLabel(s.console != nil)},
	}
}

func (s *Server) metricsInfo() string {
	mc := s.config.Metrics
	if !mc.Enabled {
		return enabledLabel(false)
	}
	if metricsHandlerOf(s.metrics) != nil {
		return fmt.Sprintf("%s %s", enabledLabel(true), bannerFaint("("+mc.Type+", "+mc.Path+")"))
	}
	return fmt.Sprintf("%s %s", enabledLabel(true), bannerFaint("("+mc.Type+")"))
}

func (s *Server) mirrorInfo() string {
	mc := s.config.Mirror
	if !mc.Enabled {
		return enabledLabel(false)
	}
	target := mc.Type
	if mc.Type == schema.MirrorTypeRedis {
		target = "redis " + mc.Redis.Addr
	}
	return fmt.Sprintf("%s %s", enabledLabel(true), bannerFaint("("+target+" → "+mc.Channel+")"))
}

func enabledLabel(on bool) string {
	if on {
		return bannerGreen("✓ Enabled")
	}
	return bannerFaint("✗ Disabled")
}

func displayPath(p, empty string) string {
	if p == "" {
		return empty
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
