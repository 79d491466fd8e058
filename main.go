package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lottery-panel/config"
	"lottery-panel/database"
	"lottery-panel/logger"
	"lottery-panel/web"
	"lottery-panel/web/global"
	"lottery-panel/web/service"

	"github.com/op/go-logging"
)

func runWebServer() {
	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		log.Fatalf("unknown log level: %s", config.GetLogLevel())
	}

	err := database.InitDB(config.GetDBPath())
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	server := web.NewServer()
	global.SetWebServer(server)
	err = server.Start()
	if err != nil {
		log.Fatalf("start web server: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	server.Stop()
	database.CloseDB()
}

func resetCredentials(username, password string) {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println("init database:", err)
		return
	}
	userService := service.UserService{}
	user, err := userService.GetFirstUser()
	if err != nil {
		fmt.Println("get user:", err)
		return
	}
	err = userService.UpdateUser(user.Id, username, password)
	if err != nil {
		fmt.Println("reset credentials:", err)
		return
	}
	fmt.Println("credentials updated")
}

func main() {
	if len(os.Args) < 2 {
		runWebServer()
		return
	}

	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "show version")

	settingCmd := flag.NewFlagSet("setting", flag.ExitOnError)
	var username string
	var password string
	settingCmd.StringVar(&username, "username", "", "set panel username")
	settingCmd.StringVar(&password, "password", "", "set panel password")

	flag.Parse()
	if showVersion {
		fmt.Println(config.GetVersion())
		return
	}

	switch os.Args[1] {
	case "run":
		runWebServer()
	case "setting":
		settingCmd.Parse(os.Args[2:])
		if username == "" || password == "" {
			fmt.Println("both -username and -password are required")
			return
		}
		resetCredentials(username, password)
	default:
		fmt.Println("unknown command:", os.Args[1])
		fmt.Println()
		fmt.Println("usage:", os.Args[0], "[run | setting -username <u> -password <p> | -v]")
	}
}
