// Package ucoin wires together the components of a ucoind node.
//
// A Ucoin engine reads its configuration, loads the node's key from the data
// directory, opens the amendment store (Badger or in-memory), starts the TCP
// transport used for pull requests, and optionally exposes the HTTP service.
//
//	conf := config.NewDefaultConfig()
//	conf.SetDataDir("/home/user/.ucoind")
//
//	engine := ucoin.NewUcoin(conf)
//	if err := engine.Init(); err != nil {
//		return err
//	}
//	engine.Run()
//
// The peers a node pulls from are read from peers.json in the data directory.
// When the file is absent the node starts alone, serving the amendments it
// holds to whoever pulls from it.
package ucoin
