package main

import (
	"github.com/cognify-labs/cognify/backend/internal/server"
	"github.com/cognify-labs/cognify/backend/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()
	util.InitLogger("cognify-server")

	server.Init()
}
