package banner

import (
	"fsbench/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	tagline := renderer.NewStyle().
		Foreground(styles.ColorSubtle).
		Render("  file-system operation benchmark")

	ascii := `
   ____     __                  __  
  / __/__  / /  ___ ___  ____  / /  
 / _/(_-< / _ \/ -_) _ \/ __/ / _ \ 
/_/ /___//_.__/\__/_//_/\__/ /_//_/ `

	return "\n" + style.Render(ascii) + "\n" + tagline + "\n"
}
