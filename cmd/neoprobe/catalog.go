package main

import (
	"fmt"
	"strconv"

	"neoprobe/internal/core/catalog"
	"neoprobe/internal/core/model"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var catalogCategories = append(append([]model.CheckCategory(nil), model.PrimaryCategories...), model.CategoryFallback)

func newCatalogCmd() *cobra.Command {
	var catalogFile string

	cmd := &cobra.Command{
		Use:   "catalog [port]",
		Short: "查看服务目录",
		Long:  `列出服务目录收录的端口，指定端口时显示该服务每个类别的命令模板。未收录的端口使用通用画像。`,
		Example: `  neoprobe catalog
  neoprobe catalog 445
  neoprobe catalog --catalog ./my_catalog.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := catalogFile
			if path == "" {
				path = loadedConfig.Scan.CatalogFile
			}
			cat, err := catalog.Resolve(path)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				return printCatalog(cat)
			}

			port, err := strconv.Atoi(args[0])
			if err != nil || port <= 0 || port > 65535 {
				return fmt.Errorf("invalid port %q", args[0])
			}
			printProfile(port, cat.Known(port), cat.Lookup(port))
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogFile, "catalog", "", "自定义服务目录文件 (YAML)")
	return cmd
}

func printCatalog(cat *catalog.Catalog) error {
	data := pterm.TableData{{"Port", "Service", "Risk", "Enum", "Auth", "Esc", "Vuln", "Fallback"}}
	row := func(label string, p *catalog.ServiceProfile) []string {
		r := []string{label, p.Name, fmt.Sprintf("%.1f", p.RiskBase)}
		for _, c := range catalogCategories {
			r = append(r, strconv.Itoa(len(p.Templates(c))))
		}
		return r
	}
	for _, port := range cat.Ports() {
		data = append(data, row(strconv.Itoa(port), cat.Lookup(port)))
	}
	data = append(data, row("*", cat.Generic()))

	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

func printProfile(port int, known bool, p *catalog.ServiceProfile) {
	title := fmt.Sprintf("%d  %s  (risk base %.1f)", port, p.Name, p.RiskBase)
	if !known {
		title += "  [generic]"
	}
	pterm.DefaultSection.Println(title)

	for _, c := range catalogCategories {
		templates := p.Templates(c)
		if len(templates) == 0 {
			continue
		}
		label := string(c)
		if c.RequiresCredentials() {
			label += " (requires -u/-p)"
		}
		pterm.DefaultSection.WithLevel(2).Println(label)
		items := make([]pterm.BulletListItem, 0, len(templates))
		for _, t := range templates {
			items = append(items, pterm.BulletListItem{Level: 0, Text: t})
		}
		_ = pterm.DefaultBulletList.WithItems(items).Render()
	}
}
