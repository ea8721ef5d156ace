package analysis

const runningDescription = `Name: train-resnet
Namespace: runai-alice
Type: Train
Status: RUNNING
Duration: 3h12m
GPUs: 1.00
Total Requested GPUs: 1.00
Allocated GPUs: 1.00
Service URLs:
Pods:
POD                 STATUS   TYPE   AGE    NODE
train-resnet-0-0    RUNNING  TRAIN  3h12m  dgx-b07/10.12.4.17

Events:
`

const pendingDescription = `Name: train-vit
Namespace: runai-alice
Status: PENDING
Pods:
POD              STATUS   TYPE   AGE  NODE
train-vit-0-0    PENDING  TRAIN  12s  <none>
`

const trainingLogs = `Loading checkpoint from /data/ckpt/epoch_3.pt
Epoch 4:  10%|█         | 10/100 [00:12<01:48,  1.20s/it]
Epoch 4:  11%|█         | 11/100 [00:13<01:31,  0.80s/it]
validation loss 0.4312
Epoch 4:  12%|█▏        | 12/100 [00:16<03:40,  2.50s/it]
`
