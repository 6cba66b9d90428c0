package main

//go:generate swag init -g cmd/engine/main.go -o docs

// @title           Compra Programada API
// @version         0.1.0
// @description     Scheduled purchase engine: baskets, client accounts, consolidated purchases, distribution, rebalancing and withholding tax events.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
