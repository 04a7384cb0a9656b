package main

import (
	"github.com/eleven-am/pose-bridge/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
