package produce

import amqp "github.com/rabbitmq/amqp091-go"

type Produce struct {
	DeletionService *DeletionService
}

var produceInstance *Produce

func InitProduce(channel *amqp.Channel) *Produce {
	if produceInstance != nil {
		return produceInstance
	}

	deletionService := InitDeletionService(channel)
	if deletionService == nil {
		panic("Failed to initialize Deletion service")
	}

	produceInstance = &Produce{
		DeletionService: deletionService,
	}

	return produceInstance
}

func GetProduce() *Produce {
	if produceInstance == nil {
		panic("Produce not initialized. Call InitProduce() first.")
	}
	return produceInstance
}
