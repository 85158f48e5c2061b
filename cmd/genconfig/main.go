package main

import (
	"flag"
	"fmt"
	"os"

	"uptime/cmd/genconfig/generator"
)

func main() {
	template := flag.String("template", "", "模板名称")
	output := flag.String("output", "", "输出文件路径 (不指定则输出到 stdout)")
	listTemplates := flag.Bool("list", false, "列出所有可用模板")

	flag.Parse()

	registry := generator.NewTemplateRegistry()

	// 列出模板
	if *listTemplates {
		fmt.Println("📋 可用模板:")
		for _, name := range registry.ListTemplates() {
			fmt.Printf("  - %s\n", name)
		}
		fmt.Println("\n使用方式: go run ./cmd/genconfig -template <name>")
		return
	}

	if *template == "" {
		fmt.Println("❌ 需要指定 -template 参数")
		fmt.Println("使用 -list 查看所有可用模板")
		os.Exit(1)
	}

	cfg, err := registry.GetTemplate(*template)
	if err != nil {
		fmt.Printf("❌ 生成配置失败: %v\n", err)
		os.Exit(1)
	}

	// 输出配置
	if *output == "" {
		fmt.Println(cfg)
		return
	}
	if err := os.WriteFile(*output, []byte(cfg), 0644); err != nil {
		fmt.Printf("❌ 写入文件失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ 配置已保存到: %s\n", *output)
}
