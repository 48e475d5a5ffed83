package main

import (
	"context"
	"flag"
	"os"
	"time"

	"uniconnect-chat/internal/utils"
	"uniconnect-chat/simulator"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	// Define simulation configuration
	config := simulator.SimConfig{}
	flag.IntVar(&config.NumUsers, "users", 20, "number of synthetic identities")
	flag.IntVar(&config.RoomsPerUser, "rooms", 3, "conversations opened per identity")
	flag.DurationVar(&config.SimulationTime, "duration", time.Minute, "how long to run")
	flag.Float64Var(&config.MessageFrequency, "rate", 6, "messages per user per minute")
	flag.Float64Var(&config.TypingProbability, "typing", 0.3, "chance a message is preceded by typing")
	flag.Float64Var(&config.ReadProbability, "read", 0.5, "chance of a mark-read after each message")
	flag.Float64Var(&config.DisconnectRate, "disconnect", 0.01, "per-second disconnect probability")
	flag.Float64Var(&config.ReconnectRate, "reconnect", 0.1, "per-second reconnect probability")
	flag.Float64Var(&config.ZipfS, "zipf", 1.07, "Zipf exponent for partner popularity")
	flag.StringVar(&config.EngineURL, "url", "http://localhost:8080", "chat server base URL")
	flag.StringVar(&config.JWTSecret, "secret", os.Getenv("JWT_SECRET"), "shared JWT secret")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := utils.NewLogger(*logLevel, "text")
	if config.JWTSecret == "" {
		logger.Fatal("A JWT secret is required (-secret or JWT_SECRET)")
	}

	logger.WithFields(logrus.Fields{
		"engine_url":     config.EngineURL,
		"users":          config.NumUsers,
		"rooms_per_user": config.RoomsPerUser,
		"duration":       config.SimulationTime,
		"rate":           config.MessageFrequency,
		"disconnect":     config.DisconnectRate,
		"reconnect":      config.ReconnectRate,
		"zipf":           config.ZipfS,
	}).Info("Starting simulation")

	sim := simulator.NewSimulator(config, logger)
	ctx, cancel := context.WithTimeout(context.Background(), config.SimulationTime)
	defer cancel()

	if err := sim.Run(ctx); err != nil {
		logger.WithError(err).Fatal("Simulation failed")
	}

	simulator.PrintReport(os.Stdout, sim.GetMetrics())
}
