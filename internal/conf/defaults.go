// defaults.go: default values for each configuration parameter.
package conf

import "github.com/spf13/viper"

// setDefaultConfig sets viper defaults for every configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main settings
	viper.SetDefault("main.name", "baseera")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/baseera.log")

	// Model settings
	viper.SetDefault("model.path", "model/plate_model.tflite")
	viper.SetDefault("model.labelpath", "model/labels.txt")
	viper.SetDefault("model.inputsize", 224)
	viper.SetDefault("model.threads", 0)
	viper.SetDefault("model.usexnnpack", true)

	// Storage settings
	viper.SetDefault("storage.datadir", "food_data")

	// Output settings
	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "food_data/records.db")

	// Dashboard settings
	viper.SetDefault("dashboard.chartsdir", "assets/dashboard")
	viper.SetDefault("dashboard.assetsdir", "assets")

	// Web server settings
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.sessionsecret", "")
	viper.SetDefault("webserver.analyzelimit.rps", 2.0)
	viper.SetDefault("webserver.analyzelimit.burst", 5)
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "logs/web.log")

	// Dish catalog, fixed set of selectable food categories
	viper.SetDefault("dishes", []map[string]any{
		{"id": "pizza", "name": "Pizza", "image": "foods/pizza.jpg"},
		{"id": "salad", "name": "Salad", "image": "foods/salad.jpg"},
		{"id": "fries", "name": "Fries", "image": "foods/fries.jpg"},
		{"id": "pasta", "name": "Pasta", "image": "foods/pasta.jpg"},
	})
}
