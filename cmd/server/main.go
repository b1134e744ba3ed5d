package main

import (
	"flag"
	"log"

	"github.com/steelvision/ingot/internal/app"
)

// 构建时通过 ldflags 注入
var version = "dev"

func main() {
	configPath := flag.String("c", "configs/config.toml", "配置文件路径")
	flag.Parse()

	if err := app.Run(*configPath, version); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
