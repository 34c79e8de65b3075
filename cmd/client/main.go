package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mikekulinski/zkstate/pkg/transport"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/spf13/cobra"
)

var (
	serverAddress  string
	sessionTimeout time.Duration
	callTimeout    time.Duration

	ephemeral  bool
	sequential bool
	version    int32
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "zkstate-client",
		Short:        "Talk to a zkstate server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "127.0.0.1:2181", "address of the server")
	rootCmd.PersistentFlags().DurationVar(&sessionTimeout, "session-timeout", 10*time.Second, "requested session timeout")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", 5*time.Second, "timeout of the whole command")

	createCmd := &cobra.Command{
		Use:   "create <path> [data]",
		Short: "Create a znode and print its name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withSession(func(ctx context.Context, zk zookeeper.Zookeeper, args []string) error {
			var data []byte
			if len(args) == 2 {
				data = []byte(args[1])
			}
			mode := zookeeper.ModePersistent
			if ephemeral {
				mode |= zookeeper.FlagEphemeral
			}
			if sequential {
				mode |= zookeeper.FlagSequence
			}
			name, err := zk.Create(ctx, args[0], data, mode)
			if err != nil {
				return err
			}
			fmt.Println(name)
			return nil
		}),
	}
	createCmd.Flags().BoolVarP(&ephemeral, "ephemeral", "e", false, "delete the node when this command's session ends")
	createCmd.Flags().BoolVarP(&sequential, "sequential", "q", false, "append a sequence number to the name")

	deleteCmd := &cobra.Command{
		Use:   "delete <path>",
		Short: "Delete a znode",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, zk zookeeper.Zookeeper, args []string) error {
			return zk.Delete(ctx, args[0], version)
		}),
	}
	deleteCmd.Flags().Int32VarP(&version, "version", "v", -1, "expected version, -1 for any")

	setCmd := &cobra.Command{
		Use:   "set <path> <data>",
		Short: "Replace the data of a znode",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(ctx context.Context, zk zookeeper.Zookeeper, args []string) error {
			stat, err := zk.SetData(ctx, args[0], []byte(args[1]), version)
			if err != nil {
				return err
			}
			printStat(stat)
			return nil
		}),
	}
	setCmd.Flags().Int32VarP(&version, "version", "v", -1, "expected version, -1 for any")

	getCmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Print the data and stat of a znode",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, zk zookeeper.Zookeeper, args []string) error {
			data, stat, err := zk.GetData(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			printStat(stat)
			return nil
		}),
	}

	lsCmd := &cobra.Command{
		Use:   "ls <path>",
		Short: "List the children of a znode",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, zk zookeeper.Zookeeper, args []string) error {
			children, err := zk.GetChildren(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println("[" + strings.Join(children, ", ") + "]")
			return nil
		}),
	}

	commandCmd := &cobra.Command{
		Use:       "cmd <word>",
		Short:     "Send a four-letter command such as ruok or srvr",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"ruok", "srvr", "dump", "conf", "envi"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
			defer cancel()
			client, err := transport.Dial(serverAddress)
			if err != nil {
				return err
			}
			defer client.Close(ctx)
			text, err := client.Command(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}

	rootCmd.AddCommand(createCmd, deleteCmd, setCmd, getCmd, lsCmd, commandCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withSession runs f inside a fresh session that is closed afterwards.
func withSession(f func(ctx context.Context, zk zookeeper.Zookeeper, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
		defer cancel()

		client, err := transport.Dial(serverAddress)
		if err != nil {
			return err
		}
		if err := client.Connect(ctx, sessionTimeout); err != nil {
			return errors.Join(err, client.Close(ctx))
		}
		defer func() {
			err = errors.Join(err, client.Close(ctx))
		}()
		return f(ctx, client, args)
	}
}

func printStat(stat zookeeper.Stat) {
	fmt.Printf("czxid = 0x%x\n", stat.Czxid)
	fmt.Printf("mzxid = 0x%x\n", stat.Mzxid)
	fmt.Printf("pzxid = 0x%x\n", stat.Pzxid)
	fmt.Printf("ctime = %s\n", time.UnixMilli(stat.Ctime).UTC().Format(time.RFC3339))
	fmt.Printf("mtime = %s\n", time.UnixMilli(stat.Mtime).UTC().Format(time.RFC3339))
	fmt.Printf("dataVersion = %d\n", stat.Version)
	fmt.Printf("cversion = %d\n", stat.Cversion)
	fmt.Printf("aclVersion = %d\n", stat.Aversion)
	fmt.Printf("ephemeralOwner = 0x%x\n", stat.EphemeralOwner)
	fmt.Printf("dataLength = %d\n", stat.DataLength)
	fmt.Printf("numChildren = %d\n", stat.NumChildren)
}
