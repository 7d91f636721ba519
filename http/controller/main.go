package controller

import (
	"github.com/tnqbao/gau-account-service/config"
	"github.com/tnqbao/gau-account-service/infra"
	"github.com/tnqbao/gau-account-service/repository"
	"github.com/tnqbao/gau-account-service/workflow"
)

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository
	Machine    *workflow.StateMachine
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository, machine *workflow.StateMachine) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}
	if machine == nil {
		panic("Failed to initialize deletion state machine")
	}
	return &Controller{
		Config:     config,
		Infra:      infra,
		Repository: repo,
		Machine:    machine,
	}
}
