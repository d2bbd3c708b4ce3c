package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"

	"pulsenet/internal/adapters"
	"pulsenet/internal/dnstest"
	"pulsenet/internal/speedtest"
)

func runCLI(app *App) {
	green := color.New(color.FgHiGreen, color.Bold)
	cyan := color.New(color.FgHiCyan)
	yellow := color.New(color.FgHiYellow)
	red := color.New(color.FgHiRed)

	green.Println("\n  ██████╗ ██╗   ██╗██╗     ███████╗███████╗███╗   ██╗███████╗████████╗")
	green.Println("  ██╔══██╗██║   ██║██║     ██╔════╝██╔════╝████╗  ██║██╔════╝╚══██╔══╝")
	green.Println("  ██████╔╝██║   ██║██║     ███████╗█████╗  ██╔██╗ ██║█████╗     ██║   ")
	green.Println("  ██╔═══╝ ██║   ██║██║     ╚════██║██╔══╝  ██║╚██╗██║██╔══╝     ██║   ")
	green.Println("  ██║     ╚██████╔╝███████╗███████║███████╗██║ ╚████║███████╗   ██║   ")
	green.Println("  ╚═╝      ╚═════╝ ╚══════╝╚══════╝╚══════╝╚═╝  ╚═══╝╚══════╝   ╚═╝   ")
	fmt.Println()
	cyan.Printf("  Network diagnostics v%s\n", Version)
	fmt.Println("  ─────────────────────────────────────────────")
	fmt.Println()

	for {
		prompt := promptui.Select{
			Label: "What would you like to do?",
			Items: []string{
				"📡 Ping",
				"🧭 DNS Resolver Test",
				"🚀 Speed Test",
				"🌐 DNS Adapters",
				"⬆️  Check for Updates",
				"🖥️  System Info",
				"⚙️  Settings",
				"❌ Exit",
			},
			Size: 8,
		}

		i, _, err := prompt.Run()
		if err != nil {
			break
		}

		fmt.Println()

		switch i {
		case 0:
			cliPing(app, green, red)
		case 1:
			cliDNSTest(app, green, yellow, red)
		case 2:
			cliSpeedTest(app, cyan, yellow, red)
		case 3:
			cliAdapters(app, green, yellow, red)
		case 4:
			cliUpdate(app, green, yellow, red)
		case 5:
			cliSystemInfo(app, cyan)
		case 6:
			cliSettings(app, green)
		case 7:
			green.Println("  Thanks for using PulseNet!")
			return
		}
		fmt.Println()
	}
}

func promptText(label, def string) (string, bool) {
	p := promptui.Prompt{Label: label, Default: def}
	v, err := p.Run()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func cliPing(app *App, green, red *color.Color) {
	host, ok := promptText("Host", "1.1.1.1")
	if !ok {
		return
	}

	res := app.Ping(host)
	if res.Alive && res.Time != nil {
		green.Printf("  ✓ %s replied in %.1f ms\n", host, *res.Time)
		return
	}
	msg := "no reply"
	if res.Error != nil {
		msg = *res.Error
	}
	red.Printf("  ✗ %s: %s\n", host, msg)
}

func cliDNSTest(app *App, green, yellow, red *color.Color) {
	domain, ok := promptText("Domain", "example.com")
	if !ok {
		return
	}
	extra, ok := promptText("Extra resolvers (comma separated, optional)", "")
	if !ok {
		return
	}

	var custom []string
	for _, s := range strings.Split(extra, ",") {
		if s = strings.TrimSpace(s); s != "" {
			custom = append(custom, s)
		}
	}

	bar := progressbar.NewOptions(len(app.dns.Servers(custom)),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Querying resolvers"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	resp := app.dns.RunWithProgress(app.ctx, domain, custom, func(dnstest.Result, int, int) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	if resp.Error != nil {
		red.Printf("  ✗ %s\n", *resp.Error)
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Resolver", "Status", "Time (ms)", "Error"})
	ok = false
	for _, r := range resp.Results {
		status := "FAIL"
		if r.Status {
			status = "OK"
			ok = true
		}
		errText := ""
		if r.Error != nil {
			errText = *r.Error
		}
		table.Append([]string{r.Server, status, strconv.FormatInt(r.ResponseTimeMs, 10), errText})
	}
	table.Render()

	if ok {
		green.Printf("  ✓ %s resolved\n", dnstest.SanitizeDomain(domain))
	} else {
		yellow.Println("  No resolver answered")
	}
}

func cliSpeedTest(app *App, cyan, yellow, red *color.Color) {
	sel := promptui.Select{
		Label: "Provider",
		Items: []string{
			"A - " + app.cfg.ProviderA.Name,
			"B - " + app.cfg.ProviderB.Name,
		},
	}
	i, _, err := sel.Run()
	if err != nil {
		return
	}
	provider := []string{"A", "B"}[i]

	yellow.Println("  Measuring latency, download, upload...")

	var bar *progressbar.ProgressBar
	rep := app.speed.Run(app.ctx, provider, func(p speedtest.Progress) {
		if bar == nil {
			total := p.Total
			if total <= 0 {
				total = -1
			}
			bar = progressbar.NewOptions64(total,
				progressbar.OptionSetDescription("Download"),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.Describe(fmt.Sprintf("Download %.1f Mbps", p.Mbps))
		_ = bar.Set64(p.Bytes)
	})
	if bar != nil {
		_ = bar.Finish()
	}

	if rep.Error != nil {
		red.Printf("  ✗ %s\n", *rep.Error)
	}

	cyan.Println("  ═══ Speed Test ═══")
	fmt.Printf("  Download:  %.2f Mbps\n", rep.DownloadMbps)
	fmt.Printf("  Upload:    %.2f Mbps\n", rep.UploadMbps)
	fmt.Printf("  Latency:   %.2f ms\n", rep.LatencyMs)
	fmt.Printf("  Jitter:    %.2f ms\n", rep.JitterMs)
	fmt.Printf("  IP:        %s\n", rep.IP)
	fmt.Printf("  Country:   %s\n", rep.Country)
	if len(rep.FailedStages) > 0 {
		yellow.Printf("  No data from: %s\n", strings.Join(rep.FailedStages, ", "))
	}
}

func cliAdapters(app *App, green, yellow, red *color.Color) {
	list := app.ListDNSAdapters(true)
	if len(list) == 0 {
		yellow.Println("  No adapters found (adapter management requires Windows)")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Adapter", "DNS Servers"})
	names := make([]string, 0, len(list))
	for _, a := range list {
		dns := strings.Join(a.DNS, ", ")
		if dns == "" {
			dns = "(automatic)"
		}
		table.Append([]string{a.Name, dns})
		names = append(names, a.Name)
	}
	table.Render()

	pick := promptui.Select{Label: "Adapter", Items: append(names, "Back")}
	idx, _, err := pick.Run()
	if err != nil || idx == len(names) {
		return
	}
	adapter := names[idx]

	presets := adapters.Presets()
	items := make([]string, 0, len(presets)+3)
	for _, p := range presets {
		items = append(items, fmt.Sprintf("%s (%s, %s)", p.Name, p.Primary, p.Secondary))
	}
	items = append(items, "Custom...", "Reset to DHCP", "Back")

	action := promptui.Select{Label: "Set DNS for " + adapter, Items: items, Size: len(items)}
	j, _, err := action.Run()
	if err != nil {
		return
	}

	var res adapters.Result
	switch {
	case j < len(presets):
		res = app.SetAdapterDNS(adapter, presets[j].Primary, presets[j].Secondary)
	case j == len(presets):
		primary, ok := promptText("Primary DNS", "")
		if !ok {
			return
		}
		secondary, ok := promptText("Secondary DNS (optional)", "")
		if !ok {
			return
		}
		res = app.SetAdapterDNS(adapter, primary, secondary)
	case j == len(presets)+1:
		res = app.ResetAdapterDNS(adapter)
	default:
		return
	}

	if res.Success {
		green.Printf("  ✓ %s updated\n", adapter)
		return
	}
	if res.Error != nil {
		red.Printf("  ✗ %s\n", *res.Error)
	}
}

func cliUpdate(app *App, green, yellow, red *color.Color) {
	sel := promptui.Select{Label: "Channel", Items: []string{"Stable", "Include pre-releases"}}
	i, _, err := sel.Run()
	if err != nil {
		return
	}

	res := app.CheckForUpdates(i == 1)
	switch {
	case res.Error != nil:
		red.Printf("  ✗ %s\n", *res.Error)
	case res.UpdateAvailable:
		green.Printf("  ✓ Version %s is available (current %s)\n", res.LatestVersion, res.CurrentVersion)
		fmt.Printf("    %s\n", res.URL)
	default:
		yellow.Printf("  You are up to date (%s)\n", res.CurrentVersion)
	}
}

func cliSystemInfo(app *App, cyan *color.Color) {
	info, err := app.GetSystemInfo()
	if err != nil {
		color.Red("  Error: %v", err)
	}
	if info == nil {
		return
	}

	cyan.Println("  ═══ System Information ═══")
	fmt.Printf("  User:        %s\n", info.Username)
	fmt.Printf("  Hostname:    %s\n", info.Hostname)
	fmt.Printf("  OS:          %s (%s)\n", info.Platform, info.OS)
	fmt.Printf("  Arch:        %s\n", info.KernelArch)
	fmt.Printf("  Uptime:      %s\n", info.Uptime)

	fmt.Println("\n  Interfaces:")
	for _, iface := range info.Interfaces {
		fmt.Printf("    %-16s mtu %-5d %s\n", iface.Name, iface.MTU, strings.Join(iface.Addrs, ", "))
	}
}

func cliSettings(app *App, green *color.Color) {
	state := map[bool]string{true: "on", false: "off"}
	sel := promptui.Select{
		Label: "Settings",
		Items: []string{
			fmt.Sprintf("Launch at login: %s (toggle)", state[app.GetAutoLaunch()]),
			fmt.Sprintf("Close action: %s", app.GetCloseAction()),
			"Back",
		},
	}
	i, _, err := sel.Run()
	if err != nil {
		return
	}

	switch i {
	case 0:
		enabled := app.SetAutoLaunch(!app.GetAutoLaunch())
		green.Printf("  ✓ Launch at login %s\n", state[enabled])
	case 1:
		pick := promptui.Select{Label: "When the window closes", Items: []string{"ask", "hide", "exit"}}
		_, action, err := pick.Run()
		if err != nil {
			return
		}
		green.Printf("  ✓ Close action set to %s\n", app.SetCloseAction(action))
	}
}
