/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/bazaar-market/apiserver/cmd"

func main() {
	cmd.Execute()
}
