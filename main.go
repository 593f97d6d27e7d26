package main

import "auto_wordpress_post_publisher/cmd"

func main() {
	cmd.Execute()
}
