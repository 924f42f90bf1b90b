package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// menuUI is the interactive interface wrapping the same actions the
// subcommands expose.
type menuUI struct {
	cmd    *cobra.Command
	reader *bufio.Reader
}

func runMenuCmd(cmd *cobra.Command, args []string) error {
	ui := &menuUI{cmd: cmd, reader: bufio.NewReader(os.Stdin)}
	return ui.run()
}

func (ui *menuUI) run() error {
	log.Info().Msg("starting launchgate interactive menu")
	ui.showBanner()

	for {
		choice, err := ui.prompt()
		if err != nil {
			return fmt.Errorf("menu error: %w", err)
		}
		if choice == "0" {
			break
		}
		if err := ui.handle(choice); err != nil {
			log.Error().Err(err).Msg("menu action failed")
			ui.waitForEnter()
		}
	}

	log.Info().Msg("launchgate menu session ended")
	return nil
}

func (ui *menuUI) showBanner() {
	fmt.Printf(`
 ╔════════════════════════════════════════════╗
 ║             launchgate %s              ║
 ║   Campaign Launch Decision Engine          ║
 ╚════════════════════════════════════════════╝

`, version)
}

func (ui *menuUI) prompt() (string, error) {
	fmt.Printf(`
╔════════════ MAIN MENU ════════════╗

 1. Run    - Full decision run
 2. Gas    - Forecast pillar only
 3. Risk   - Contract risk pillar only
 4. Users  - Behavior pillar only
 5. Decide - Reconcile cached artifacts
 6. Serve  - Report & metrics server
 0. Exit

╚═══════════════════════════════════╝

Select option: `)
	line, err := ui.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (ui *menuUI) handle(choice string) error {
	switch choice {
	case "1":
		return runFull(ui.cmd, nil)
	case "2":
		return runForecast(ui.cmd, nil)
	case "3":
		return runRisk(ui.cmd, nil)
	case "4":
		return runBehavior(ui.cmd, nil)
	case "5":
		return runDecide(ui.cmd, nil)
	case "6":
		return runServe(ui.cmd, nil)
	default:
		fmt.Printf("Unknown option: %s\n", choice)
		return nil
	}
}

func (ui *menuUI) waitForEnter() {
	fmt.Print("\nPress Enter to continue...")
	_, _ = ui.reader.ReadString('\n')
}
