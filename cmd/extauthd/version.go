package main

import (
	"fmt"

	"github.com/danmuck/extauthd/internal/buildinfo"
)

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(buildinfo.VersionString())
	return nil
}
